// Package api exposes the option vaults and the oracle registry over HTTP.
//
// Token amounts cross the wire as base-unit integer strings; *_display
// fields carry the same amount scaled by the token's decimals.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/atmx/option-vault/internal/limits"
	"github.com/atmx/option-vault/internal/metrics"
	"github.com/atmx/option-vault/internal/model"
	"github.com/atmx/option-vault/internal/store"
	"github.com/atmx/option-vault/internal/vault"
)

// Vault is the surface shared by the long and short vaults.
type Vault interface {
	Kind() vault.Kind
	Address() common.Address
	Owner() common.Address
	QuoteToken() common.Address
	HedgeToken() common.Address
	OracleManager() common.Address
	SwapVenue() common.Address
	PremiumFeeBps() uint64
	ExpiryWindow() time.Duration
	Deposit(ctx context.Context, tx model.Tx, token common.Address, amount *uint256.Int) (uint64, error)
	Buy(ctx context.Context, tx model.Tx, id uint64, sharesBps uint64) error
	Execute(ctx context.Context, caller common.Address, id uint64) error
	TransferFrom(caller, from, to common.Address, id uint64) error
	Option(id uint64) (*model.Option, error)
	Options() []*model.Option
	GetOwnedOptions(account common.Address) []uint64
	OwnerOf(id uint64) (common.Address, error)
}

// Registry is the oracle manager surface used for quotes and lookups.
type Registry interface {
	GetAmountOut(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *uint256.Int) (*uint256.Int, error)
	Oracles(tokenA, tokenB common.Address) common.Address
	Stables(tokenA, tokenB common.Address) bool
}

// Ledger is the token surface used for display amounts and allowances.
type Ledger interface {
	Decimals(token common.Address) (uint8, error)
	BalanceOf(token, account common.Address) *uint256.Int
	Allowance(token, owner, spender common.Address) *uint256.Int
	Approve(token, owner, spender common.Address, amount *uint256.Int) error
}

// Config carries the collaborators of a Service.
type Config struct {
	Registry Registry
	Ledger   Ledger
	Store    store.Store
	Limiter  *limits.DepositLimiter // nil disables deposit limits
	Clock    model.Clock
	Logger   *slog.Logger
}

// Service serves vault operations. Deposits are serialized so that the
// exposure check and the deposit observe the same open interest.
type Service struct {
	vaults   map[vault.Kind]Vault
	registry Registry
	ledger   Ledger
	store    store.Store
	limiter  *limits.DepositLimiter
	clock    model.Clock
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewService creates a service over the given vaults.
func NewService(cfg Config, vaults ...Vault) *Service {
	if cfg.Limiter == nil {
		cfg.Limiter = limits.NewDepositLimiter(decimal.Zero, decimal.Zero)
	}
	if cfg.Clock == nil {
		cfg.Clock = model.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Service{
		vaults:   make(map[vault.Kind]Vault, len(vaults)),
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		store:    cfg.Store,
		limiter:  cfg.Limiter,
		clock:    cfg.Clock,
		logger:   cfg.Logger.With("component", "api"),
	}
	for _, v := range vaults {
		s.vaults[v.Kind()] = v
	}
	return s
}

// Routes mounts the API handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/quote", s.GetQuote)
	r.Get("/oracles/{tokenA}/{tokenB}", s.GetOracle)
	r.Get("/events", s.ListEvents)
	r.Get("/events/{id}", s.GetEvent)
	r.Get("/tokens/{token}/balances/{address}", s.GetBalance)
	r.Post("/tokens/{token}/approve", s.Approve)

	r.Route("/vaults/{kind}", func(r chi.Router) {
		r.Get("/", s.GetVault)
		r.Post("/deposit", s.Deposit)
		r.Get("/options/{id}", s.GetOption)
		r.Get("/options/{id}/history", s.GetOptionHistory)
		r.Post("/options/{id}/buy", s.Buy)
		r.Post("/options/{id}/execute", s.Execute)
		r.Post("/options/{id}/transfer", s.Transfer)
		r.Get("/owners/{address}/options", s.GetOwnedOptions)
	})
}

// --- Request/Response types ---

// DepositRequest is the JSON body for POST /vaults/{kind}/deposit.
type DepositRequest struct {
	Sender common.Address `json:"sender"`
	Token  common.Address `json:"token"`
	Amount string         `json:"amount"`
	Value  string         `json:"value,omitempty"` // native value attached to the call
}

// DepositResponse is returned after a successful deposit.
type DepositResponse struct {
	OptionID uint64      `json:"option_id"`
	Option   *OptionView `json:"option"`
}

// BuyRequest is the JSON body for POST /vaults/{kind}/options/{id}/buy.
type BuyRequest struct {
	Sender    common.Address `json:"sender"`
	SharesBps uint64         `json:"shares_bps"` // fraction of the remaining notional
	Value     string         `json:"value,omitempty"`
}

// ExecuteRequest is the JSON body for POST /vaults/{kind}/options/{id}/execute.
type ExecuteRequest struct {
	Sender common.Address `json:"sender"`
}

// TransferRequest is the JSON body for POST /vaults/{kind}/options/{id}/transfer.
type TransferRequest struct {
	Sender common.Address `json:"sender"`
	To     common.Address `json:"to"`
}

// OptionView is an option together with its current holder.
type OptionView struct {
	*model.Option
	Vault         vault.Kind      `json:"vault"`
	Holder        *common.Address `json:"holder,omitempty"`
	Remaining     *uint256.Int    `json:"remaining"`
	Expired       bool            `json:"expired"`
	AmountDisplay decimal.Decimal `json:"amount_display"`
}

// VaultInfo is returned by GET /vaults/{kind}.
type VaultInfo struct {
	Kind          vault.Kind      `json:"kind"`
	Address       common.Address  `json:"address"`
	Owner         common.Address  `json:"owner"`
	QuoteToken    common.Address  `json:"quote_token"`
	HedgeToken    common.Address  `json:"hedge_token"`
	OracleManager common.Address  `json:"oracle_manager"`
	SwapVenue     *common.Address `json:"swap_venue,omitempty"`
	PremiumFeeBps uint64          `json:"premium_fee_bps"`
	ExpirySeconds int64           `json:"expiry_seconds"`
	OpenOptions   int             `json:"open_options"`
}

// QuoteResponse is returned by GET /quote.
type QuoteResponse struct {
	TokenIn          common.Address  `json:"token_in"`
	TokenOut         common.Address  `json:"token_out"`
	AmountIn         *uint256.Int    `json:"amount_in"`
	AmountOut        *uint256.Int    `json:"amount_out"`
	AmountOutDisplay decimal.Decimal `json:"amount_out_display"`
}

// OracleResponse is returned by GET /oracles/{tokenA}/{tokenB}.
type OracleResponse struct {
	TokenA common.Address  `json:"token_a"`
	TokenB common.Address  `json:"token_b"`
	Oracle *common.Address `json:"oracle,omitempty"`
	Stable bool            `json:"stable"`
}

// ApproveRequest is the JSON body for POST /tokens/{token}/approve.
type ApproveRequest struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Amount  string         `json:"amount"`
}

// BalanceResponse is returned by the token endpoints.
type BalanceResponse struct {
	Token   common.Address  `json:"token"`
	Account common.Address  `json:"account"`
	Spender *common.Address `json:"spender,omitempty"`
	Amount  *uint256.Int    `json:"amount"`
	Display decimal.Decimal `json:"display"`
}

// --- Handlers ---

// Deposit handles POST /api/v1/vaults/{kind}/deposit
// Writes a new option after checking the writer and open interest limits.
func (s *Service) Deposit(w http.ResponseWriter, r *http.Request) {
	v, ok := s.vault(w, r)
	if !ok {
		return
	}
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := parseUnits(req.Amount)
	if err != nil || amount.IsZero() {
		writeError(w, "amount must be a positive base-unit integer", http.StatusBadRequest)
		return
	}
	value, err := parseUnits(req.Value)
	if err != nil {
		writeError(w, "value must be a base-unit integer", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	notional, err := s.quoteValue(ctx, v.QuoteToken(), req.Token, amount)
	if err != nil {
		s.fail(w, v, "deposit", err)
		return
	}
	exposures, err := s.exposures(ctx, v)
	if err != nil {
		s.fail(w, v, "deposit", err)
		return
	}
	if err := s.limiter.CheckDeposit(req.Sender, notional, exposures); err != nil {
		metrics.DepositLimitRejections.Inc()
		s.logger.Warn("deposit rejected by limits",
			"vault", v.Kind(),
			"writer", req.Sender,
			"notional", notional.String(),
			"error", err,
		)
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	id, err := v.Deposit(ctx, model.Tx{Sender: req.Sender, Value: value}, req.Token, amount)
	if err != nil {
		s.fail(w, v, "deposit", err)
		return
	}
	opt, err := v.Option(id)
	if err != nil {
		s.fail(w, v, "deposit", err)
		return
	}

	s.logger.Info("option written",
		"vault", v.Kind(),
		"option_id", id,
		"writer", req.Sender,
		"token", req.Token,
		"amount", amount.Dec(),
		"notional", notional.String(),
	)

	writeJSON(w, http.StatusCreated, DepositResponse{OptionID: id, Option: s.view(v, opt)})
}

// Buy handles POST /api/v1/vaults/{kind}/options/{id}/buy
func (s *Service) Buy(w http.ResponseWriter, r *http.Request) {
	v, id, ok := s.vaultOption(w, r)
	if !ok {
		return
	}
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	value, err := parseUnits(req.Value)
	if err != nil {
		writeError(w, "value must be a base-unit integer", http.StatusBadRequest)
		return
	}

	if err := v.Buy(r.Context(), model.Tx{Sender: req.Sender, Value: value}, id, req.SharesBps); err != nil {
		s.fail(w, v, "buy", err)
		return
	}
	s.logger.Info("option bought",
		"vault", v.Kind(),
		"option_id", id,
		"buyer", req.Sender,
		"shares_bps", req.SharesBps,
	)
	s.writeOption(w, v, id)
}

// Execute handles POST /api/v1/vaults/{kind}/options/{id}/execute
func (s *Service) Execute(w http.ResponseWriter, r *http.Request) {
	v, id, ok := s.vaultOption(w, r)
	if !ok {
		return
	}
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := v.Execute(r.Context(), req.Sender, id); err != nil {
		s.fail(w, v, "execute", err)
		return
	}
	s.logger.Info("option executed", "vault", v.Kind(), "option_id", id, "executor", req.Sender)
	writeJSON(w, http.StatusOK, map[string]any{"option_id": id, "status": "executed"})
}

// Transfer handles POST /api/v1/vaults/{kind}/options/{id}/transfer
// Moves the position token from the sender to another account.
func (s *Service) Transfer(w http.ResponseWriter, r *http.Request) {
	v, id, ok := s.vaultOption(w, r)
	if !ok {
		return
	}
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := v.TransferFrom(req.Sender, req.Sender, req.To, id); err != nil {
		s.fail(w, v, "transfer", err)
		return
	}
	s.writeOption(w, v, id)
}

// GetVault handles GET /api/v1/vaults/{kind}
func (s *Service) GetVault(w http.ResponseWriter, r *http.Request) {
	v, ok := s.vault(w, r)
	if !ok {
		return
	}
	info := VaultInfo{
		Kind:          v.Kind(),
		Address:       v.Address(),
		Owner:         v.Owner(),
		QuoteToken:    v.QuoteToken(),
		HedgeToken:    v.HedgeToken(),
		OracleManager: v.OracleManager(),
		PremiumFeeBps: v.PremiumFeeBps(),
		ExpirySeconds: int64(v.ExpiryWindow() / time.Second),
		OpenOptions:   len(v.Options()),
	}
	if venue := v.SwapVenue(); venue != (common.Address{}) {
		info.SwapVenue = &venue
	}
	writeJSON(w, http.StatusOK, info)
}

// GetOption handles GET /api/v1/vaults/{kind}/options/{id}
func (s *Service) GetOption(w http.ResponseWriter, r *http.Request) {
	v, id, ok := s.vaultOption(w, r)
	if !ok {
		return
	}
	s.writeOption(w, v, id)
}

// GetOptionHistory handles GET /api/v1/vaults/{kind}/options/{id}/history
// The history outlives the option, so executed options still resolve.
func (s *Service) GetOptionHistory(w http.ResponseWriter, r *http.Request) {
	v, id, ok := s.vaultOption(w, r)
	if !ok {
		return
	}
	events, err := s.store.GetOptionHistory(r.Context(), v.Address(), id)
	if err != nil {
		s.logger.Error("option history failed", "vault", v.Kind(), "option_id", id, "error", err)
		writeError(w, "failed to load option history", http.StatusInternalServerError)
		return
	}
	if len(events) == 0 {
		writeError(w, fmt.Sprintf("no events for option %d", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// GetOwnedOptions handles GET /api/v1/vaults/{kind}/owners/{address}/options
func (s *Service) GetOwnedOptions(w http.ResponseWriter, r *http.Request) {
	v, ok := s.vault(w, r)
	if !ok {
		return
	}
	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		writeError(w, "invalid address", http.StatusBadRequest)
		return
	}
	ids := v.GetOwnedOptions(common.HexToAddress(addr))
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetQuote handles GET /api/v1/quote?token_in=&token_out=&amount_in=
func (s *Service) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in, out := q.Get("token_in"), q.Get("token_out")
	if !common.IsHexAddress(in) || !common.IsHexAddress(out) {
		writeError(w, "token_in and token_out must be addresses", http.StatusBadRequest)
		return
	}
	amountIn, err := parseUnits(q.Get("amount_in"))
	if err != nil {
		writeError(w, "amount_in must be a base-unit integer", http.StatusBadRequest)
		return
	}

	tokenIn, tokenOut := common.HexToAddress(in), common.HexToAddress(out)
	amountOut, err := s.registry.GetAmountOut(r.Context(), tokenIn, tokenOut, amountIn)
	if err != nil {
		code := vault.Code(err)
		s.logger.Warn("quote failed", "token_in", tokenIn, "token_out", tokenOut, "code", code, "error", err)
		writeError(w, err.Error(), statusFor(code))
		return
	}
	display, err := s.display(tokenOut, amountOut)
	if err != nil {
		writeError(w, err.Error(), statusFor(vault.Code(err)))
		return
	}

	writeJSON(w, http.StatusOK, QuoteResponse{
		TokenIn:          tokenIn,
		TokenOut:         tokenOut,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		AmountOutDisplay: display,
	})
}

// GetOracle handles GET /api/v1/oracles/{tokenA}/{tokenB}
func (s *Service) GetOracle(w http.ResponseWriter, r *http.Request) {
	a, b := chi.URLParam(r, "tokenA"), chi.URLParam(r, "tokenB")
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		writeError(w, "invalid token address", http.StatusBadRequest)
		return
	}
	tokenA, tokenB := common.HexToAddress(a), common.HexToAddress(b)
	resp := OracleResponse{
		TokenA: tokenA,
		TokenB: tokenB,
		Stable: s.registry.Stables(tokenA, tokenB),
	}
	if o := s.registry.Oracles(tokenA, tokenB); o != (common.Address{}) {
		resp.Oracle = &o
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListEvents handles GET /api/v1/events?vault=&option_id=&limit=
func (s *Service) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.EventFilter

	if kind := q.Get("vault"); kind != "" {
		v, ok := s.vaults[vault.Kind(kind)]
		if !ok {
			writeError(w, fmt.Sprintf("unknown vault %q", kind), http.StatusNotFound)
			return
		}
		emitter := v.Address()
		f.Emitter = &emitter
	}
	if raw := q.Get("option_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, "option_id must be an integer", http.StatusBadRequest)
			return
		}
		f.OptionID = &id
	}
	if raw := q.Get("account"); raw != "" {
		if !common.IsHexAddress(raw) {
			writeError(w, "invalid account", http.StatusBadRequest)
			return
		}
		acct := common.HexToAddress(raw)
		f.Account = &acct
	}
	if raw := q.Get("kind"); raw != "" {
		f.Kind = model.EventKind(raw)
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	events, err := s.store.ListEvents(r.Context(), f)
	if err != nil {
		s.logger.Error("list events failed", "error", err)
		writeError(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /api/v1/events/{id}
func (s *Service) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, err := s.store.GetEvent(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, fmt.Sprintf("event %s not found", id), http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("get event failed", "event_id", id, "error", err)
		writeError(w, "failed to load event", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// GetBalance handles GET /api/v1/tokens/{token}/balances/{address}
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	tok, acct := chi.URLParam(r, "token"), chi.URLParam(r, "address")
	if !common.IsHexAddress(tok) || !common.IsHexAddress(acct) {
		writeError(w, "invalid address", http.StatusBadRequest)
		return
	}
	token, account := common.HexToAddress(tok), common.HexToAddress(acct)
	bal := s.ledger.BalanceOf(token, account)
	display, err := s.display(token, bal)
	if err != nil {
		writeError(w, err.Error(), statusFor(vault.Code(err)))
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Token: token, Account: account, Amount: bal, Display: display})
}

// Approve handles POST /api/v1/tokens/{token}/approve
// Sets the allowance a vault or venue may pull from the owner.
func (s *Service) Approve(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	if !common.IsHexAddress(tok) {
		writeError(w, "invalid token address", http.StatusBadRequest)
		return
	}
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	amount, err := parseUnits(req.Amount)
	if err != nil {
		writeError(w, "amount must be a base-unit integer", http.StatusBadRequest)
		return
	}

	token := common.HexToAddress(tok)
	if err := s.ledger.Approve(token, req.Owner, req.Spender, amount); err != nil {
		code := vault.Code(err)
		s.logger.Warn("approve failed", "token", token, "owner", req.Owner, "code", code, "error", err)
		writeError(w, err.Error(), statusFor(code))
		return
	}
	allowance := s.ledger.Allowance(token, req.Owner, req.Spender)
	display, _ := s.display(token, allowance)
	writeJSON(w, http.StatusOK, BalanceResponse{
		Token:   token,
		Account: req.Owner,
		Spender: &req.Spender,
		Amount:  allowance,
		Display: display,
	})
}

// --- helpers ---

func (s *Service) vault(w http.ResponseWriter, r *http.Request) (Vault, bool) {
	kind := chi.URLParam(r, "kind")
	v, ok := s.vaults[vault.Kind(kind)]
	if !ok {
		writeError(w, fmt.Sprintf("unknown vault %q", kind), http.StatusNotFound)
		return nil, false
	}
	return v, true
}

func (s *Service) vaultOption(w http.ResponseWriter, r *http.Request) (Vault, uint64, bool) {
	v, ok := s.vault(w, r)
	if !ok {
		return nil, 0, false
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, "option id must be an integer", http.StatusBadRequest)
		return nil, 0, false
	}
	return v, id, true
}

func (s *Service) writeOption(w http.ResponseWriter, v Vault, id uint64) {
	opt, err := v.Option(id)
	if err != nil {
		writeError(w, err.Error(), statusFor(vault.Code(err)))
		return
	}
	writeJSON(w, http.StatusOK, s.view(v, opt))
}

func (s *Service) view(v Vault, opt *model.Option) *OptionView {
	view := &OptionView{
		Option:    opt,
		Vault:     v.Kind(),
		Remaining: opt.Remaining(),
		Expired:   opt.Expired(s.clock.Now()),
	}
	if holder, err := v.OwnerOf(opt.ID); err == nil {
		view.Holder = &holder
	}
	if d, err := s.display(opt.Collateral, opt.Amount); err == nil {
		view.AmountDisplay = d
	}
	return view
}

// exposures values every open option of v in quote units, per writer.
func (s *Service) exposures(ctx context.Context, v Vault) (map[common.Address]decimal.Decimal, error) {
	out := make(map[common.Address]decimal.Decimal)
	for _, opt := range v.Options() {
		n, err := s.quoteValue(ctx, v.QuoteToken(), opt.Collateral, opt.Amount)
		if err != nil {
			return nil, err
		}
		out[opt.Writer] = out[opt.Writer].Add(n)
	}
	return out, nil
}

func (s *Service) quoteValue(ctx context.Context, quote, token common.Address, amount *uint256.Int) (decimal.Decimal, error) {
	q, err := s.registry.GetAmountOut(ctx, token, quote, amount)
	if err != nil {
		return decimal.Zero, err
	}
	return s.display(quote, q)
}

func (s *Service) display(token common.Address, amount *uint256.Int) (decimal.Decimal, error) {
	dec, err := s.ledger.Decimals(token)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(amount.ToBig(), -int32(dec)), nil
}

func (s *Service) fail(w http.ResponseWriter, v Vault, op string, err error) {
	code := vault.Code(err)
	s.logger.Warn("vault operation failed",
		"vault", v.Kind(),
		"op", op,
		"code", code,
		"error", err,
	)
	writeError(w, err.Error(), statusFor(code))
}

// statusFor maps an error code from vault.Code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case "INVALID_AMOUNT", "INVALID_VALUE", "INVALID_COLLATERAL", "INVALID_FEE",
		"INVALID_CONFIG", "INVALID_TOKENS", "UNSUPPORTED_TOKEN", "ZERO_ADDRESS",
		"APPROVE_TO_OWNER", "NATIVE_ALLOWANCE", "OVERFLOW":
		return http.StatusBadRequest
	case "NOT_OWNER", "NOT_WRITER", "UNAUTHORIZED", "NOT_APPROVED", "WRONG_OWNER":
		return http.StatusForbidden
	case "NO_SUCH_POSITION", "NO_ORACLE", "NO_STABLE", "UNKNOWN_TOKEN":
		return http.StatusNotFound
	case "CAPACITY_EXCEEDED", "EXPIRED", "POSITION_HELD", "INSUFFICIENT_BALANCE",
		"INSUFFICIENT_ALLOWANCE", "SWAP_VENUE_ZERO", "ORACLE_MANAGER_ZERO", "SWAP_ZERO_OUTPUT":
		return http.StatusConflict
	case "STALE_PRICE", "INVALID_PRICE", "TOKEN_ORACLE_MISMATCH":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

var errBadUnits = errors.New("api: invalid base-unit amount")

// parseUnits parses a base-unit integer string. Empty means zero.
func parseUnits(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errBadUnits, s)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
