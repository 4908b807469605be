package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/auth"
	"github.com/iurnickita/poscashup/internal/closing"
	"github.com/iurnickita/poscashup/internal/handler/config"
	"github.com/iurnickita/poscashup/internal/logger"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/movement"
	"github.com/iurnickita/poscashup/internal/service"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// Serve обслуживает API терминалов до отмены ctx, затем дожидается текущих запросов.
func Serve(ctx context.Context, cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	h := newHandler(auth, service, zaplog)
	router := h.newRouter()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		zaplog.Info("listening", zap.String("addr", cfg.ServerAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	zaplog.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type handler struct {
	auth    auth.Auth
	service service.Service
	zaplog  *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, zaplog *zap.Logger) *handler {
	return &handler{
		auth:    auth,
		service: service,
		zaplog:  zaplog,
	}
}

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/cashup/open", logger.RequestLogMdlw(h.auth.Middleware(h.PostOpen), h.zaplog))
	mux.HandleFunc("POST /api/cashup/movement", logger.RequestLogMdlw(h.auth.Middleware(h.PostMovement), h.zaplog))
	mux.HandleFunc("POST /api/cashup/close", logger.RequestLogMdlw(h.auth.Middleware(h.PostClose), h.zaplog))
	mux.HandleFunc("POST /api/cashup/associate", logger.RequestLogMdlw(h.auth.Middleware(h.PostAssociate), h.zaplog))
	mux.HandleFunc("GET /api/cashup/master", logger.RequestLogMdlw(h.auth.Middleware(h.GetMaster), h.zaplog))
	mux.HandleFunc("GET /api/cashup", logger.RequestLogMdlw(h.auth.Middleware(h.GetCashup), h.zaplog))

	return mux
}

func (h *handler) PostOpen(w http.ResponseWriter, r *http.Request) {
	var req CashupJSON
	if !h.readJSON(w, r, &req) {
		return
	}

	res, err := h.service.Open(r.Context(), requestContext(r), req.toModel())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, OpenJSONResponse{
		Status:         statusOK,
		CashupID:       res.CashupID,
		IsProcessed:    res.IsProcessed,
		ParentCashupID: res.ParentCashupID,
		Warning:        res.Warning,
	})
}

func (h *handler) PostMovement(w http.ResponseWriter, r *http.Request) {
	var req MovementJSONRequest
	if !h.readJSON(w, r, &req) {
		return
	}
	transactionID := req.ID
	if transactionID == "" {
		transactionID = r.Header.Get(HeaderIdempotencyKey)
	}

	res, err := h.service.RecordMovement(r.Context(), requestContext(r), movement.Request{
		TransactionID:   transactionID,
		CashupID:        req.CashupID,
		PaymentMethodID: req.PaymentMethodID,
		Direction:       model.MovementDirection(req.Type),
		Amount:          req.Amount,
		Description:     req.Description,
		ReasonCode:      req.ReasonCode,
		Foreign:         req.foreign(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, MovementJSONResponse{
		Status:        statusOK,
		TransactionID: res.Movement.ID,
		EventID:       res.Movement.EventID,
		CashupID:      res.Movement.CashupID,
		Replayed:      res.Replayed,
	})
}

func (h *handler) PostClose(w http.ResponseWriter, r *http.Request) {
	var req CloseJSONRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	res, err := h.service.Close(r.Context(), requestContext(r), closing.Request{
		CashupID:        req.CashupID,
		CloseDate:       req.CashUpDate.Time,
		Payload:         req.payload(),
		CashMovementIDs: req.CashMgmtIDs,
		Approvals:       req.approvals(),
		SlaveCashupIDs:  req.SlaveCashupIDs,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, CloseJSONResponse{
		Status:           statusOK,
		CashupID:         res.Cashup.ID,
		CloseResult:      res.Outcome.CloseResult,
		OrderGroupResult: res.Outcome.OrderGroupResult,
		Replayed:         res.Replayed,
	})
}

func (h *handler) PostAssociate(w http.ResponseWriter, r *http.Request) {
	var req AssociateJSONRequest
	if !h.readJSON(w, r, &req) {
		return
	}

	res, err := h.service.Associate(r.Context(), requestContext(r), req.Pos, req.Cashup)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, AssociateJSONResponse{
		Status:         statusOK,
		CashupID:       res.CashupID,
		HasMaster:      res.HasMaster,
		ParentCashupID: res.ParentCashupID,
		Warning:        res.Warning,
	})
}

func (h *handler) GetMaster(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.MasterSummary(r.Context(), requestContext(r), r.URL.Query().Get("pos"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, masterJSON(summary))
}

func (h *handler) GetCashup(w http.ResponseWriter, r *http.Request) {
	var processed bool
	if v := r.URL.Query().Get("isprocessed"); v != "" {
		var err error
		processed, err = strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, apperr.Validation("isprocessed must be a boolean"))
			return
		}
	}

	snapshots, err := h.service.Snapshot(r.Context(), requestContext(r), r.URL.Query().Get("pos"), processed)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, snapshotJSON(snapshots))
}

func requestContext(r *http.Request) model.RequestContext {
	rc, _ := auth.FromContext(r.Context())
	return rc
}

func (h *handler) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, apperr.Validation(err.Error()))
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		h.writeError(w, apperr.Validation("malformed request: "+err.Error()))
		return false
	}
	return true
}

func (h *handler) writeJSON(w http.ResponseWriter, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(responseJSON)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	if kind.HTTPStatus() >= http.StatusInternalServerError {
		h.zaplog.Error("request failed", zap.String("kind", kind.String()), zap.Error(err))
	}
	apperr.WriteHTTP(w, err)
}
