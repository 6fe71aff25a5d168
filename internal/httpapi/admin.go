package httpapi

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bakehouse/internal/model"
	"bakehouse/internal/orders"
	"bakehouse/internal/pickup"
	"bakehouse/internal/report"
	"github.com/go-chi/chi/v5"
)

func (s *Server) adminListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	storeID, ok := queryID(w, r, "store_id", false)
	if !ok {
		return
	}
	f := model.OrderFilter{
		StoreID: storeID,
		Status:  model.OrderStatus(q.Get("status")),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Limit:   200,
	}
	verr := &model.ValidationError{}
	for field, v := range map[string]string{"from": f.From, "to": f.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(pickup.DateLayout, v); err != nil {
			verr.Add(field, "invalid date format, expected YYYY-MM-DD")
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			verr.Add("limit", "limit must be between 1 and 1000")
		}
		f.Limit = n
	}
	if err := verr.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.Orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	o, err := s.Orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

type validateStatusResponse struct {
	Allowed bool                `json:"allowed"`
	Next    []model.OrderStatus `json:"next"`
}

func (s *Server) adminValidateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	allowed, err := s.Orders.Validate(ctx, id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.Orders.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, validateStatusResponse{Allowed: allowed, Next: orders.NextStatuses(o.Status)})
}

func (s *Server) adminApplyStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := s.Orders.ApplyStatus(r.Context(), id, req.Status, adminActor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type hoursRequest struct {
	IsClosed  bool   `json:"is_closed"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

func (h hoursRequest) validate(verr *model.ValidationError) {
	if h.IsClosed {
		return
	}
	if _, _, ok := (pickup.DaySchedule{Start: h.StartTime, End: h.EndTime}).Hours(); !ok {
		verr.Add("hours", "start_time and end_time must be HH:MM with start before end")
	}
}

// adminPutHours replaces the weekly hours of one weekday (name or 1-7).
func (s *Server) adminPutHours(w http.ResponseWriter, r *http.Request) {
	storeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req hoursRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	verr := &model.ValidationError{}
	day, err := pickup.ParseWeekday(chi.URLParam(r, "weekday"))
	if err != nil {
		verr.Add("weekday", err.Error())
	}
	req.validate(verr)
	if err := verr.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := s.DB.GetStore(ctx, storeID); err != nil {
		writeError(w, r, err)
		return
	}
	h := model.StoreHours{
		StoreID:   storeID,
		DayOfWeek: pickup.WeekdayNumber(day),
		IsClosed:  req.IsClosed,
	}
	if !req.IsClosed {
		h.StartTime, h.EndTime = req.StartTime, req.EndTime
	}
	if err := s.DB.UpsertStoreHours(ctx, h); err != nil {
		writeError(w, r, err)
		return
	}
	hlogAdmin(r, "Store hours updated", storeID)
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) adminPutException(w http.ResponseWriter, r *http.Request) {
	storeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req hoursRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date := chi.URLParam(r, "date")
	verr := &model.ValidationError{}
	if _, err := time.Parse(pickup.DateLayout, date); err != nil {
		verr.Add("date", "invalid date format, expected YYYY-MM-DD")
	}
	req.validate(verr)
	if err := verr.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := s.DB.GetStore(ctx, storeID); err != nil {
		writeError(w, r, err)
		return
	}
	e := model.StoreException{
		StoreID:  storeID,
		Date:     date,
		IsClosed: req.IsClosed,
		Reason:   strings.TrimSpace(req.Reason),
	}
	if !req.IsClosed {
		e.StartTime, e.EndTime = req.StartTime, req.EndTime
	}
	if err := s.DB.SetException(ctx, e); err != nil {
		writeError(w, r, err)
		return
	}
	hlogAdmin(r, "Store exception set", storeID)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) adminDeleteException(w http.ResponseWriter, r *http.Request) {
	storeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.DB.DeleteException(r.Context(), storeID, chi.URLParam(r, "date")); err != nil {
		writeError(w, r, err)
		return
	}
	hlogAdmin(r, "Store exception deleted", storeID)
	w.WriteHeader(http.StatusNoContent)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func validateSlugName(verr *model.ValidationError, slug, name string) {
	if !slugPattern.MatchString(slug) {
		verr.Add("slug", "slug must be lowercase letters, digits and dashes")
	}
	if strings.TrimSpace(name) == "" {
		verr.Add("name", "name is required")
	}
}

// adminPutCategory creates a category when id is 0 and updates it otherwise.
func (s *Server) adminPutCategory(w http.ResponseWriter, r *http.Request) {
	var c model.Category
	if !decodeJSON(w, r, &c) {
		return
	}
	verr := &model.ValidationError{}
	validateSlugName(verr, c.Slug, c.Name)
	if c.PickupDays != nil && c.PickupDays.Empty() {
		verr.Add("pickup_days", "a restriction needs at least one day; omit it for no restriction")
	}
	if err := verr.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	created := c.ID == 0
	if err := s.DB.SaveCategory(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, c)
}

func (s *Server) adminPutProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	verr := &model.ValidationError{}
	validateSlugName(verr, p.Slug, p.Name)
	if p.PriceCents < 0 {
		verr.Add("price_cents", "price must not be negative")
	}
	if p.CategoryID <= 0 {
		verr.Add("category_id", "category_id is required")
	}
	if err := verr.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	created := p.ID == 0
	err := s.DB.SaveProduct(r.Context(), &p)
	if created && errors.Is(err, model.ErrNotFound) {
		err = model.NewValidationError("category_id", "unknown category")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, p)
}

func (s *Server) adminListPriceTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := s.DB.ListPriceTiers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tiers)
}

func (s *Server) adminPutPriceTier(w http.ResponseWriter, r *http.Request) {
	var t model.PriceTier
	if !decodeJSON(w, r, &t) {
		return
	}
	verr := &model.ValidationError{}
	if strings.TrimSpace(t.Name) == "" {
		verr.Add("name", "name is required")
	}
	if t.DiscountPercent < 0 || t.DiscountPercent > 100 {
		verr.Add("discount_percent", "discount must be between 0 and 100")
	}
	if err := verr.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.DB.SavePriceTier(r.Context(), &t); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// adminOrdersReport streams an xlsx of orders picked up in [from, to].
// Without parameters it covers the current month.
func (s *Server) adminOrdersReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := report.MonthRange(s.now())
	if v := q.Get("from"); v != "" {
		from = v
	}
	if v := q.Get("to"); v != "" {
		to = v
	}
	verr := &model.ValidationError{}
	fromDate, errFrom := time.Parse(pickup.DateLayout, from)
	toDate, errTo := time.Parse(pickup.DateLayout, to)
	if errFrom != nil {
		verr.Add("from", "invalid date format, expected YYYY-MM-DD")
	}
	if errTo != nil {
		verr.Add("to", "invalid date format, expected YYYY-MM-DD")
	}
	if errFrom == nil && errTo == nil && toDate.Before(fromDate) {
		verr.Add("to", "to must not be before from")
	}
	if err := verr.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	buf, err := report.Orders(r.Context(), s.DB, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="orders_`+from+`_`+to+`.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
