package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	authConfig "github.com/iurnickita/poscashup/internal/auth/config"
	handlerConfig "github.com/iurnickita/poscashup/internal/handler/config"
	hookConfig "github.com/iurnickita/poscashup/internal/hook/config"
	loggerConfig "github.com/iurnickita/poscashup/internal/logger/config"
	serviceConfig "github.com/iurnickita/poscashup/internal/service/config"
	storeConfig "github.com/iurnickita/poscashup/internal/store/config"
)

const EnvPrefix = "CASHUP"

type Config struct {
	Handler handlerConfig.Config
	Service serviceConfig.Config
	Store   storeConfig.Config
	Logger  loggerConfig.Config
	Auth    authConfig.Config
	Hook    hookConfig.Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("handler.server_addr", ":8080")
	v.SetDefault("handler.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.query_timeout", 5*time.Second)
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("service.require_difference_approval", false)
	v.SetDefault("hook.webhook_url", "")
	v.SetDefault("hook.webhook_timeout", 5*time.Second)
}

// LoadConfig собирает конфигурацию: значения по умолчанию, файл (если задан),
// затем переменные окружения CASHUP_<SECTION>_<KEY>.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	return Config{
		Handler: handlerConfig.Config{
			ServerAddr:      v.GetString("handler.server_addr"),
			ShutdownTimeout: v.GetDuration("handler.shutdown_timeout"),
		},
		Service: serviceConfig.Config{
			RequireDifferenceApproval: v.GetBool("service.require_difference_approval"),
		},
		Store: storeConfig.Config{
			DBDsn:        v.GetString("store.dsn"),
			QueryTimeout: v.GetDuration("store.query_timeout"),
			MaxOpenConns: v.GetInt("store.max_open_conns"),
			MaxIdleConns: v.GetInt("store.max_idle_conns"),
		},
		Logger: loggerConfig.Config{
			LogLevel: v.GetString("logger.level"),
		},
		Auth: authConfig.Config{
			Secret:   v.GetString("auth.secret"),
			TokenTTL: v.GetDuration("auth.token_ttl"),
		},
		Hook: hookConfig.Config{
			WebhookURL:     v.GetString("hook.webhook_url"),
			WebhookTimeout: v.GetDuration("hook.webhook_timeout"),
		},
	}, nil
}

// GetConfig - конфигурация только из окружения.
func GetConfig() (Config, error) {
	return LoadConfig("")
}
