// Package gateway exposes the staking engine over HTTP for stakers, admins
// and off-chain indexers.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftstake/native/nftstake"
	"nftstake/observability"
)

const maxRequestBody = 1 << 20 // 1 MiB

// Server is the HTTP front-end for the staking platform.
type Server struct {
	engine  *nftstake.Engine
	log     *slog.Logger
	metrics *observability.StakingMetrics
}

// NewServer wires the engine behind the HTTP API.
func NewServer(engine *nftstake.Engine, logger *slog.Logger) *Server {
	if engine == nil {
		panic("engine required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, log: logger, metrics: observability.Metrics()}
}

// Router builds the chi router for the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/platform", s.handlePlatform)
		v1.Post("/pools", s.handleCreatePool)
		v1.Route("/pools/{poolID}", func(pr chi.Router) {
			pr.Get("/", s.handlePoolInfo)
			pr.Post("/stake", s.handleStake)
			pr.Post("/unstake", s.handleUnstake)
			pr.Post("/claim", s.handleClaim)
			pr.Post("/withdraw", s.handleWithdrawReward)
			pr.Get("/rewards/{address}", s.handleRewards)
			pr.Get("/stakes/{address}", s.handleStakes)
		})
		v1.Route("/admin", func(ar chi.Router) {
			ar.Post("/treasury", s.handleSetTreasury)
			ar.Post("/handover", s.handleChangeAdmin)
			ar.Post("/verification-key", s.handleChangeKey)
			ar.Post("/withdraw-fees", s.handleWithdrawFees)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			"requestId", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"durationMs", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	s.writeError(w, statusForError(err), err)
}

func poolIDParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "poolID"), 10, 64)
}

func (s *Server) updateStakedGauge(poolID uint64) {
	pool, err := s.engine.PoolInfo(poolID)
	if err != nil {
		return
	}
	s.metrics.SetStakedCount(strconv.FormatUint(poolID, 10), pool.TotalStakedCount)
}

func (s *Server) handlePlatform(w http.ResponseWriter, r *http.Request) {
	platform, err := s.engine.PlatformInfo()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"admin":      formatAddr(platform.Admin),
		"treasury":   formatAddr(platform.Treasury),
		"feeBalance": platform.FeeBalance.String(),
		"nextPoolId": platform.NextPoolID,
	})
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req struct {
		Caller          string `json:"caller"`
		Collection      string `json:"collection"`
		RewardToken     string `json:"rewardToken"`
		Deposit         string `json:"deposit"`
		DailyReward     string `json:"dailyReward"`
		MaxDailyReward  string `json:"maxDailyReward"`
		UsesRarityTiers bool   `json:"usesRarityTiers"`
		LockDuration    int64  `json:"lockDuration"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	deposit, err := parseAmount("deposit", req.Deposit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	daily, err := parseAmount("dailyReward", req.DailyReward)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	maxDaily, err := parseAmount("maxDailyReward", req.MaxDailyReward)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	pool, err := s.engine.CreatePool(caller, req.Collection, req.RewardToken, deposit, daily, maxDaily, req.UsesRarityTiers, req.LockDuration)
	if err != nil {
		s.metrics.Observe("create_pool", "error", start)
		s.writeEngineError(w, err)
		return
	}
	s.metrics.Observe("create_pool", "ok", start)
	s.writeJSON(w, http.StatusCreated, renderPool(pool))
}

func (s *Server) handlePoolInfo(w http.ResponseWriter, r *http.Request) {
	poolID, err := poolIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	pool, err := s.engine.PoolInfo(poolID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderPool(pool))
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	poolID, err := poolIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Staker        string         `json:"staker"`
		Assets        []assetPayload `json:"assets"`
		DailyRates    []string       `json:"dailyRates"`
		RateSignature string         `json:"rateSignature"`
		Fee           string         `json:"fee"`
		FeeSignature  string         `json:"feeSignature"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	staker, err := parseAddress("staker", req.Staker)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	rates, err := parseAmounts("dailyRates", req.DailyRates)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	rateSig, err := parseHex("rateSignature", req.RateSignature)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	feeSig, err := parseHex("feeSignature", req.FeeSignature)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	assets := make([]nftstake.AssetHandle, len(req.Assets))
	for i, asset := range req.Assets {
		assets[i] = asset.handle()
	}
	if err := s.engine.BatchStake(staker, assets, poolID, rates, rateSig, fee, feeSig); err != nil {
		s.metrics.Observe("stake", "error", start)
		s.writeEngineError(w, err)
		return
	}
	s.metrics.Observe("stake", "ok", start)
	s.updateStakedGauge(poolID)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "staked"})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	poolID, err := poolIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Staker       string         `json:"staker"`
		Assets       []assetPayload `json:"assets"`
		Fee          string         `json:"fee"`
		FeeSignature string         `json:"feeSignature"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	staker, err := parseAddress("staker", req.Staker)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	fee, err := parseAmount("fee", req.Fee)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	feeSig, err := parseHex("feeSignature", req.FeeSignature)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	assets := make([]nftstake.AssetHandle, len(req.Assets))
	for i, asset := range req.Assets {
		assets[i] = asset.handle()
	}
	if err := s.engine.BatchUnstake(staker, assets, poolID, fee, feeSig); err != nil {
		s.metrics.Observe("unstake", "error", start)
		s.writeEngineError(w, err)
		return
	}
	s.metrics.Observe("unstake", "ok", start)
	s.updateStakedGauge(poolID)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "unstaked"})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	poolID, err := poolIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Staker string `json:"staker"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	staker, err := parseAddress("staker", req.Staker)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	paid, err := s.engine.ClaimReward(staker, poolID)
	if err != nil {
		s.metrics.Observe("claim", "error", start)
		s.writeEngineError(w, err)
		return
	}
	s.metrics.Observe("claim", "ok", start)
	s.writeJSON(w, http.StatusOK, map[string]string{"paid": paid.String()})
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	poolID, err := poolIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	staker, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	now := time.Now().Unix()
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := strconv.ParseInt(at, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		now = parsed
	}
	owed, err := s.engine.CalculateRewards(staker, poolID, now)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"owed": owed.String()})
}

func (s *Server) handleStakes(w http.ResponseWriter, r *http.Request) {
	poolID, err := poolIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	staker, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	records, err := s.engine.StakesOf(staker, poolID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderStakes(records))
}

func (s *Server) handleWithdrawReward(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	poolID, err := poolIDParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Caller string `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.engine.WithdrawReward(caller, poolID)
	if err != nil {
		s.metrics.Observe("withdraw_reward", "error", start)
		s.writeEngineError(w, err)
		return
	}
	s.metrics.Observe("withdraw_reward", "ok", start)
	s.writeJSON(w, http.StatusOK, map[string]string{"withdrawn": amount.String()})
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req struct {
		Caller string `json:"caller"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.engine.WithdrawPlatformFee(caller)
	if err != nil {
		s.metrics.Observe("withdraw_fees", "error", start)
		s.writeEngineError(w, err)
		return
	}
	s.metrics.Observe("withdraw_fees", "ok", start)
	s.writeJSON(w, http.StatusOK, map[string]string{"withdrawn": amount.String()})
}

func (s *Server) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller   string `json:"caller"`
		Treasury string `json:"treasury"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	treasury, err := parseAddress("treasury", req.Treasury)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.SetTreasury(caller, treasury); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleChangeAdmin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller string `json:"caller"`
		Admin  string `json:"admin"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	admin, err := parseAddress("admin", req.Admin)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.ChangeAdmin(caller, admin); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleChangeKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Caller    string `json:"caller"`
		PublicKey string `json:"publicKey"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	key, err := parseHex("publicKey", req.PublicKey)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.ChangeVerificationKey(caller, key); err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
