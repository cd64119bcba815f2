/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes leave.Service (writes) and leave.Engine (reads) over REST. Handles
  HTTP request/response, JSON serialization and role scoping, and delegates
  every decision to the leave package.

ENDPOINTS:
  Admin (/api/admin):
    GET    /employees                         List employees
    POST   /employees                         Create employee
    GET    /employees/{id}                    Get employee
    POST   /employees/{id}/probation/{action} start | complete | extend | terminate
    GET    /employees/{id}/balance            Entitlement snapshot
    GET    /employees/{id}/adjustments        Ledger rows (?leave_type=)
    POST   /employees/{id}/adjustments        Manual balance adjustment
    GET    /policies                          List policies
    POST   /policies                          Create/replace policy (factory.PolicyJSON)
    GET    /holidays                          List holidays
    POST   /holidays                          Add holiday
    DELETE /holidays/{id}                     Remove holiday
    GET    /leave-requests                    Paged list (?status=&employee_id=&leave_type=&from=&to=)
    POST   /leave-requests                    Create on behalf of an employee
    POST   /leave-requests/{id}/approve       Approve pending request
    POST   /leave-requests/{id}/reject        Reject pending request
    GET    /leave-requests/{id}/pay-status    Paid/unpaid split from current data
    POST   /recompute                         Re-derive stamped paid flags (?employee_id=)
    GET    /reports/balances                  Every employee's snapshot
    GET    /reports/monthly                   Monthly paid/unpaid (?format=xlsx)

  Manager (/api/manager), scoped to direct reports:
    GET    /team
    GET    /leave-requests                    Pending by default (?status=)
    POST   /leave-requests/{id}/approve
    POST   /leave-requests/{id}/reject
    GET    /balances

  Employee (/api/employee), scoped to the caller:
    GET    /balance
    GET    /leave-requests
    POST   /leave-requests
    GET    /leave-requests/{id}/pay-status
    GET    /monthly

  Balance windows: ?year=2025 (calendar or fiscal year per config), or
  ?from=&to=; default is the window containing today. ?as_of= defaults to today.

ERROR HANDLING:
  Errors map to status through errors.Is on the generic sentinels:
  - 400: invalid input, range, period or transition
  - 404: missing employee, policy or request
  - 409: overlapping request, ambiguous policy, duplicate idempotency key
  - 422: insufficient balance
  - 503: concurrent modification after retries
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - auth.go: Bearer token and role checks
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *leave.Service
	Engine    *leave.Engine
	Policies  *factory.PolicyFactory
	Scheduler *RecomputeScheduler
	Logger    *zap.Logger

	// Health reports store reachability for /healthz. Optional.
	Health func(ctx context.Context) error
}

func NewHandler(svc *leave.Service, engine *leave.Engine, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:  svc,
		Engine:   engine,
		Policies: factory.NewPolicyFactory(),
		Logger:   logger,
	}
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health(r.Context()); err != nil {
			writeFail(w, r, http.StatusServiceUnavailable, "unavailable", "store unreachable", nil)
			return
		}
	}
	writeOK(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
}

// =============================================================================
// EMPLOYEES (admin)
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := h.Service.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]EmployeeDTO, len(emps))
	for i, e := range emps {
		dtos[i] = toEmployeeDTO(e)
	}
	writeOK(w, http.StatusOK, "", dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.Store.GetEmployee(r.Context(), generic.EntityID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", toEmployeeDTO(e))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	join, err := parseDate("join_date", req.JoinDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	class, err := leave.ParseClassification(req.Classification)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.Service.CreateEmployee(r.Context(), leave.Employee{
		ID:             generic.EntityID(req.ID),
		Name:           req.Name,
		Email:          req.Email,
		JoinDate:       join,
		Classification: class,
		ManagerID:      generic.EntityID(req.ManagerID),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "employee created", toEmployeeDTO(e))
}

// Probation handles POST /employees/{id}/probation/{action}.
func (h *Handler) Probation(w http.ResponseWriter, r *http.Request) {
	id := generic.EntityID(chi.URLParam(r, "id"))
	var req ProbationRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var (
		e   leave.Employee
		err error
	)
	switch action := chi.URLParam(r, "action"); action {
	case "start":
		var start generic.TimePoint
		if start, err = parseDate("start_date", req.StartDate); err == nil {
			e, err = h.Service.StartProbation(r.Context(), id, start, req.DurationDays)
		}
	case "complete":
		var at generic.TimePoint
		if at, err = h.dateOrToday("date", req.Date); err == nil {
			e, err = h.Service.CompleteProbation(r.Context(), id, at)
		}
	case "extend":
		var end generic.TimePoint
		if end, err = parseDate("end_date", req.EndDate); err == nil {
			e, err = h.Service.ExtendProbation(r.Context(), id, end)
		}
	case "terminate":
		var at generic.TimePoint
		if at, err = h.dateOrToday("date", req.Date); err == nil {
			e, err = h.Service.TerminateProbation(r.Context(), id, at)
		}
	default:
		writeFail(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("unknown probation action %q", action), nil)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "probation updated", toEmployeeDTO(e))
}

// =============================================================================
// BALANCES
// =============================================================================

// EmployeeBalance serves GET /admin/employees/{id}/balance.
func (h *Handler) EmployeeBalance(w http.ResponseWriter, r *http.Request) {
	h.balance(w, r, generic.EntityID(chi.URLParam(r, "id")))
}

// MyBalance serves GET /employee/balance.
func (h *Handler) MyBalance(w http.ResponseWriter, r *http.Request) {
	h.balance(w, r, mustPrincipal(r).EmployeeID)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request, id generic.EntityID) {
	window, asOf, err := h.windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := h.Engine.Snapshot(r.Context(), id, window, asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", toSnapshotDTO(snap))
}

// AllBalances serves GET /admin/reports/balances.
func (h *Handler) AllBalances(w http.ResponseWriter, r *http.Request) {
	emps, err := h.Service.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.teamBalances(w, r, emps)
}

// TeamBalances serves GET /manager/balances.
func (h *Handler) TeamBalances(w http.ResponseWriter, r *http.Request) {
	team, err := h.Service.Team(r.Context(), mustPrincipal(r).EmployeeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.teamBalances(w, r, team)
}

func (h *Handler) teamBalances(w http.ResponseWriter, r *http.Request, emps []leave.Employee) {
	window, asOf, err := h.windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rep, err := h.Engine.TeamSnapshots(r.Context(), employeeIDs(emps), window, asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", toTeamBalancesDTO(rep))
}

// =============================================================================
// ADJUSTMENTS (admin)
// =============================================================================

// ListAdjustments serves ?leave_type= and an optional ?from=&to= window.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	id := generic.EntityID(chi.URLParam(r, "id"))
	q := r.URL.Query()

	var window *generic.Period
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := parseDate("from", q.Get("from"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		to, err := parseDate("to", q.Get("to"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		window = &generic.Period{Start: from, End: to}
	}

	types := leave.LeaveTypes
	if raw := q.Get("leave_type"); raw != "" {
		t, err := leave.ParseLeaveType(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		types = []leave.LeaveType{t}
	}

	dtos := []TransactionDTO{}
	for _, t := range types {
		var (
			txs []generic.Transaction
			err error
		)
		if window != nil {
			txs, err = h.Service.AdjustmentsIn(r.Context(), id, t, *window)
		} else {
			txs, err = h.Service.Adjustments(r.Context(), id, t)
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		for _, tx := range txs {
			dtos = append(dtos, toTransactionDTO(tx))
		}
	}
	writeOK(w, http.StatusOK, "", dtos)
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := leave.ParseLeaveType(req.LeaveType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	at, err := h.dateOrToday("effective_date", req.EffectiveDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tx, err := h.Service.AdjustBalance(r.Context(), leave.Adjustment{
		EmployeeID:     generic.EntityID(chi.URLParam(r, "id")),
		LeaveType:      t,
		Delta:          req.Delta,
		EffectiveAt:    at,
		Reason:         req.Reason,
		Actor:          string(mustPrincipal(r).EmployeeID),
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "balance adjusted", toTransactionDTO(tx))
}

// =============================================================================
// POLICIES (admin)
// =============================================================================

func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Service.Store.ListPolicies(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]factory.PolicyJSON, len(ps))
	for i, p := range ps {
		dtos[i] = h.Policies.ToJSON(p)
	}
	writeOK(w, http.StatusOK, "", dtos)
}

func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var pj factory.PolicyJSON
	if err := decode(r, &pj); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Policies.FromJSON(pj)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err = h.Service.SavePolicy(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "policy saved", h.Policies.ToJSON(p))
}

// =============================================================================
// HOLIDAYS (admin)
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	hs, err := h.Service.Store.ListHolidays(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]HolidayDTO, len(hs))
	for i, hol := range hs {
		dtos[i] = toHolidayDTO(hol)
	}
	writeOK(w, http.StatusOK, "", dtos)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	d, err := parseDate("date", req.Date)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	hol, err := h.Service.AddHoliday(r.Context(), generic.Holiday{ID: req.ID, Date: d, Name: req.Name, Recurring: req.Recurring})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "holiday added", toHolidayDTO(hol))
}

func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.RemoveHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "holiday removed", nil)
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// ListRequests serves GET /admin/leave-requests with pagination.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	f, err := requestFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if id := r.URL.Query().Get("employee_id"); id != "" {
		f.EmployeeID = generic.EntityID(id)
	}
	reqs, err := h.Service.Store.ListRequests(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, p := paginate(r, reqs)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: toLeaveRequestDTOs(page), Pagination: &p})
}

// TeamRequests serves GET /manager/leave-requests: pending by default.
func (h *Handler) TeamRequests(w http.ResponseWriter, r *http.Request) {
	f, err := requestFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(f.Statuses) == 0 {
		f.Statuses = []leave.LeaveStatus{leave.StatusPending}
	}
	team, err := h.Service.Team(r.Context(), mustPrincipal(r).EmployeeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(team) == 0 {
		writeJSON(w, http.StatusOK, Envelope{Success: true, Data: []LeaveRequestDTO{}, Pagination: &Pagination{Limit: defaultPageSize}})
		return
	}
	f.EmployeeIDs = employeeIDs(team)

	reqs, err := h.Service.Store.ListRequests(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, p := paginate(r, reqs)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: toLeaveRequestDTOs(page), Pagination: &p})
}

// MyRequests serves GET /employee/leave-requests.
func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	f, err := requestFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f.EmployeeID = mustPrincipal(r).EmployeeID
	reqs, err := h.Service.Store.ListRequests(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, p := paginate(r, reqs)
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: toLeaveRequestDTOs(page), Pagination: &p})
}

// CreateRequest serves POST /admin/leave-requests (employee_id required)
// and POST /employee/leave-requests (always the caller).
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateLeaveRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p := mustPrincipal(r)
	empID := p.EmployeeID
	if p.Role == RoleAdmin && req.EmployeeID != "" {
		empID = generic.EntityID(req.EmployeeID)
	}

	t, err := leave.ParseLeaveType(req.LeaveType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end := start
	if req.EndDate != "" {
		if end, err = parseDate("end_date", req.EndDate); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	created, err := h.Service.CreateRequest(r.Context(), leave.NewRequest{
		EmployeeID:      empID,
		LeaveType:       t,
		Start:           start,
		End:             end,
		IsHalfDay:       req.IsHalfDay,
		ShortLeaveHours: req.ShortLeaveHours,
		Days:            req.Days,
		Reason:          req.Reason,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "leave request submitted", toLeaveRequestDTO(created))
}

// Approve serves POST /admin/leave-requests/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.StatusApproved, false)
}

// Reject serves POST /admin/leave-requests/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.StatusRejected, false)
}

// TeamApprove serves POST /manager/leave-requests/{id}/approve.
func (h *Handler) TeamApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.StatusApproved, true)
}

// TeamReject serves POST /manager/leave-requests/{id}/reject.
func (h *Handler) TeamReject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.StatusRejected, true)
}

// decide approves or rejects. Nobody decides their own request; with
// teamOnly the request must come from one of the caller's direct reports.
func (h *Handler) decide(w http.ResponseWriter, r *http.Request, to leave.LeaveStatus, teamOnly bool) {
	id := chi.URLParam(r, "id")
	p := mustPrincipal(r)

	var body RejectRequest
	if to == leave.StatusRejected {
		if err := decode(r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	req, err := h.Service.Store.GetRequest(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.EmployeeID == p.EmployeeID {
		writeFail(w, r, http.StatusForbidden, "forbidden", "cannot decide your own leave request", nil)
		return
	}
	if teamOnly {
		emp, err := h.Service.Store.GetEmployee(r.Context(), req.EmployeeID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if emp.ManagerID != p.EmployeeID {
			writeFail(w, r, http.StatusForbidden, "forbidden", "leave request is not from your team", nil)
			return
		}
	}

	var out leave.LeaveRequest
	if to == leave.StatusApproved {
		out, err = h.Service.Approve(r.Context(), id, string(p.EmployeeID))
	} else {
		out, err = h.Service.Reject(r.Context(), id, string(p.EmployeeID), body.Reason)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "leave request "+string(out.Status), toLeaveRequestDTO(out))
}

// PayStatus serves GET /admin/leave-requests/{id}/pay-status.
func (h *Handler) PayStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.PaidUnpaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", toPayStatusDTO(res))
}

// MyPayStatus serves GET /employee/leave-requests/{id}/pay-status. Another
// employee's request is reported as not found.
func (h *Handler) MyPayStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.Service.Store.GetRequest(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.EmployeeID != mustPrincipal(r).EmployeeID {
		h.writeError(w, r, leave.RequestNotFound(id))
		return
	}
	h.PayStatus(w, r)
}

// Recompute serves POST /admin/recompute. With ?employee_id= only that
// employee is recomputed.
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	var (
		n   int
		err error
	)
	switch id := r.URL.Query().Get("employee_id"); {
	case id != "":
		n, err = h.Service.RecomputePaidStatus(r.Context(), generic.EntityID(id))
	case h.Scheduler != nil:
		n, err = h.Scheduler.RunOnce(r.Context())
	default:
		n, err = h.Service.RecomputeAll(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, fmt.Sprintf("%d requests updated", n), RecomputeDTO{Changed: n})
}

// =============================================================================
// MONTHLY BREAKDOWN
// =============================================================================

// MonthlyReport serves GET /admin/reports/monthly, as JSON or with
// ?format=xlsx as a workbook. ?employee_id= may repeat to narrow it.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	window, _, err := h.windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var ids []generic.EntityID
	for _, id := range r.URL.Query()["employee_id"] {
		ids = append(ids, generic.EntityID(id))
	}

	bs, err := h.Engine.TeamMonthlyBreakdown(r.Context(), ids, window)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", report.ContentType)
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="leave-monthly-%s-%s.xlsx"`, window.Start, window.End))
		if err := report.WriteMonthlyBreakdown(w, bs); err != nil {
			h.Logger.Error("monthly report write failed", zap.Error(err))
		}
		return
	}

	dtos := make([]MonthlyBreakdownDTO, len(bs))
	for i, b := range bs {
		dtos[i] = toMonthlyDTO(b)
	}
	writeOK(w, http.StatusOK, "", dtos)
}

// MyMonthly serves GET /employee/monthly.
func (h *Handler) MyMonthly(w http.ResponseWriter, r *http.Request) {
	window, _, err := h.windowParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.Engine.MonthlyBreakdown(r.Context(), mustPrincipal(r).EmployeeID, window)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", toMonthlyDTO(b))
}

// Team serves GET /manager/team.
func (h *Handler) Team(w http.ResponseWriter, r *http.Request) {
	team, err := h.Service.Team(r.Context(), mustPrincipal(r).EmployeeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]EmployeeDTO, len(team))
	for i, e := range team {
		dtos[i] = toEmployeeDTO(e)
	}
	writeOK(w, http.StatusOK, "", dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func writeFail(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	writeJSON(w, status, Envelope{
		Success: false,
		Message: message,
		Error: &ErrorBody{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: middleware.GetReqID(r.Context()),
		},
	})
}

// writeError maps err to a status and error code.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	var details any
	if ce, ok := leave.AsConflict(err); ok {
		details = ConflictDTO{
			RequestID: ce.Existing.ID,
			Status:    string(ce.Existing.Status),
			LeaveType: string(ce.Existing.LeaveType),
			StartDate: ce.Existing.Start.String(),
			EndDate:   ce.Existing.End.String(),
		}
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		msg = "internal error"
	}
	writeFail(w, r, status, code, msg, details)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, "duplicate"
	case generic.IsConflict(err):
		return http.StatusConflict, "conflict"
	case generic.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, generic.ErrInvalidTransition):
		return http.StatusBadRequest, "invalid_transition"
	case generic.IsClientError(err):
		return http.StatusBadRequest, "invalid_input"
	case generic.IsRetryable(err):
		return http.StatusServiceUnavailable, "busy"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", generic.ErrInvalidInput, err)
	}
	return nil
}

func mustPrincipal(r *http.Request) Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

func parseDate(field, raw string) (generic.TimePoint, error) {
	if raw == "" {
		return generic.TimePoint{}, fmt.Errorf("%w: %s is required", generic.ErrInvalidInput, field)
	}
	d, err := generic.ParseDate(raw)
	if err != nil {
		return generic.TimePoint{}, fmt.Errorf("%w: %s: %v", generic.ErrInvalidInput, field, err)
	}
	return d, nil
}

func (h *Handler) dateOrToday(field, raw string) (generic.TimePoint, error) {
	if raw == "" {
		return h.Engine.Today(), nil
	}
	return parseDate(field, raw)
}

// windowParams reads ?year= or ?from=&to=, and ?as_of=.
func (h *Handler) windowParams(r *http.Request) (generic.Period, generic.TimePoint, error) {
	q := r.URL.Query()

	asOf, err := h.dateOrToday("as_of", q.Get("as_of"))
	if err != nil {
		return generic.Period{}, generic.TimePoint{}, err
	}

	switch {
	case q.Get("year") != "":
		y, err := strconv.Atoi(q.Get("year"))
		if err != nil || y < 1900 || y > 9999 {
			return generic.Period{}, generic.TimePoint{}, fmt.Errorf("%w: year must be a four-digit number", generic.ErrInvalidInput)
		}
		return h.Engine.YearWindow(y), asOf, nil
	case q.Get("from") != "" || q.Get("to") != "":
		from, err := parseDate("from", q.Get("from"))
		if err != nil {
			return generic.Period{}, generic.TimePoint{}, err
		}
		to, err := parseDate("to", q.Get("to"))
		if err != nil {
			return generic.Period{}, generic.TimePoint{}, err
		}
		p, err := generic.NewPeriod(from, to)
		return p, asOf, err
	default:
		return h.Engine.Periods.PeriodFor(asOf), asOf, nil
	}
}

// requestFilter reads ?status= (repeatable or comma separated),
// ?leave_type=, ?from= and ?to=.
func requestFilter(r *http.Request) (leave.RequestFilter, error) {
	q := r.URL.Query()
	var f leave.RequestFilter

	for _, raw := range q["status"] {
		for _, s := range strings.Split(raw, ",") {
			st, err := leave.ParseLeaveStatus(strings.TrimSpace(s))
			if err != nil {
				return f, err
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if raw := q.Get("leave_type"); raw != "" {
		t, err := leave.ParseLeaveType(raw)
		if err != nil {
			return f, err
		}
		f.LeaveType = t
	}
	if raw := q.Get("from"); raw != "" {
		d, err := parseDate("from", raw)
		if err != nil {
			return f, err
		}
		f.From = &d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := parseDate("to", raw)
		if err != nil {
			return f, err
		}
		f.To = &d
	}
	return f, nil
}

func paginate(r *http.Request, reqs []leave.LeaveRequest) ([]leave.LeaveRequest, Pagination) {
	p := Pagination{Limit: defaultPageSize, Total: len(reqs)}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		p.Limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		p.Offset = v
	}
	if p.Offset >= len(reqs) {
		return []leave.LeaveRequest{}, p
	}
	return reqs[p.Offset:min(p.Offset+p.Limit, len(reqs))], p
}

func employeeIDs(emps []leave.Employee) []generic.EntityID {
	ids := make([]generic.EntityID, len(emps))
	for i, e := range emps {
		ids[i] = e.ID
	}
	return ids
}
