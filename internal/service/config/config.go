package config

type Config struct {
	// Закрытие с расхождением по кассе требует подтверждения cashup.difference
	RequireDifferenceApproval bool
}
