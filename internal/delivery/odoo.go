package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/scrape/util"
)

// Odoo writes leads straight into an Odoo database over its JSON-RPC
// endpoint: partner find-or-create, then create (or annotate) a crm.lead
// linked to it, tagged and staged.
type Odoo struct {
	endpoint string
	db       string
	username string
	password string
	uid      int64

	city     string
	country  string
	leadType string
	timeout  time.Duration

	p     poster
	reqID atomic.Int64
	now   func() time.Time

	mu        sync.Mutex
	tags      map[string]int64
	stageID   int64
	countryID int64
	resolved  bool
}

func NewOdoo(ctx context.Context, cfg config.CRM, limiter *util.HostLimiter) (*Odoo, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	switch {
	case base == "":
		return nil, missing("odoo", "url")
	case strings.TrimSpace(cfg.DB) == "":
		return nil, missing("odoo", "db")
	case strings.TrimSpace(cfg.Username) == "":
		return nil, missing("odoo", "username")
	case cfg.Password == "":
		return nil, missing("odoo", "password")
	}
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}

	o := &Odoo{
		endpoint: base + "/jsonrpc",
		db:       cfg.DB,
		username: cfg.Username,
		password: cfg.Password,
		city:     cfg.City,
		country:  cfg.Country,
		leadType: cfg.LeadType,
		timeout:  cfg.Timeout(),
		p:        newPoster(0, limiter),
		now:      time.Now,
		tags:     map[string]int64{},
	}
	if o.leadType == "" {
		o.leadType = "opportunity"
	}

	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	raw, err := o.call(cctx, "common", "authenticate", o.db, o.username, o.password, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("odoo authenticate %s: %w", base, err)
	}
	var uid any
	if err := json.Unmarshal(raw, &uid); err != nil {
		return nil, fmt.Errorf("odoo authenticate: %w", err)
	}
	n, ok := uid.(float64)
	if !ok || n <= 0 {
		return nil, &ConfigError{CRM: "odoo", Msg: fmt.Sprintf("authentication failed for user %q on db %q", o.username, o.db)}
	}
	o.uid = int64(n)
	log.Printf("[delivery:odoo] authenticated url=%q db=%q uid=%d", base, o.db, o.uid)
	return o, nil
}

func (o *Odoo) Name() string { return "odoo" }

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is a fault returned by the Odoo server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *RPCError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("odoo rpc %d: %s: %s", e.Code, e.Message, e.Data.Message)
	}
	return fmt.Sprintf("odoo rpc %d: %s", e.Code, e.Message)
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string { return fmt.Sprintf("http %d: %s", e.status, e.body) }

func (o *Odoo) call(ctx context.Context, service, method string, args ...any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      o.reqID.Add(1),
	})
	if err != nil {
		return nil, err
	}
	status, resp, err := o.p.post(ctx, o.endpoint, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &statusError{status: status, body: snippet(resp)}
	}
	var rr rpcResponse
	if err := json.Unmarshal(resp, &rr); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if rr.Error != nil {
		return nil, rr.Error
	}
	return rr.Result, nil
}

func (o *Odoo) execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return o.call(ctx, "object", "execute_kw", o.db, o.uid, o.password, model, method, args, kwargs)
}

func (o *Odoo) searchOne(ctx context.Context, model string, filter []any) (int64, bool, error) {
	raw, err := o.execute(ctx, model, "search", []any{filter}, map[string]any{"limit": 1})
	if err != nil {
		return 0, false, err
	}
	ids := []int64{}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return 0, false, fmt.Errorf("%s search: %w", model, err)
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

func (o *Odoo) create(ctx context.Context, model string, vals map[string]any) (int64, error) {
	raw, err := o.execute(ctx, model, "create", []any{vals}, nil)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("%s create: %w", model, err)
	}
	return id, nil
}

func cond(field, op string, v any) []any { return []any{field, op, v} }

// optVal renders an absent field as false, which Odoo reads as "unset".
func optVal(o domain.Opt) any {
	if v, ok := o.Get(); ok {
		return v
	}
	return false
}

func (o *Odoo) Push(ctx context.Context, l domain.Lead) domain.DeliveryResult {
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	id, updated, err := o.upsertLead(cctx, l)
	if err != nil {
		log.Printf("[delivery:odoo] push failed lead=%q err=%v", l.Name, err)
		return failure(err)
	}
	action := "created"
	if updated {
		action = "updated"
	}
	log.Printf("[delivery:odoo] lead %s name=%q id=%d", action, l.Name, id)
	res := domain.Delivered(http.StatusOK)
	res.Message = fmt.Sprintf("crm.lead %d %s", id, action)
	return res
}

func failure(err error) domain.DeliveryResult {
	var rpcErr *RPCError
	var se *statusError
	switch {
	case errors.As(err, &rpcErr):
		return domain.Failed(domain.ErrKindRemote, http.StatusOK, rpcErr.Error())
	case errors.As(err, &se):
		return domain.Failed(domain.ErrKindHTTPStatus, se.status, se.body)
	}
	return domain.Failed(classify(err), 0, err.Error())
}

func (o *Odoo) PushBatch(ctx context.Context, leads []domain.Lead) domain.BatchResult {
	return pushEach(ctx, o, leads)
}

func (o *Odoo) upsertLead(ctx context.Context, l domain.Lead) (int64, bool, error) {
	if err := o.resolveRefs(ctx); err != nil {
		return 0, false, err
	}
	partnerID, err := o.partnerFor(ctx, l)
	if err != nil {
		return 0, false, fmt.Errorf("partner: %w", err)
	}

	existing, found, err := o.searchOne(ctx, "crm.lead", []any{cond("partner_id", "=", partnerID)})
	if err != nil {
		return 0, false, fmt.Errorf("lead search: %w", err)
	}
	if found {
		_, err := o.execute(ctx, "crm.lead", "write",
			[]any{[]int64{existing}, map[string]any{"description": o.updateNote(l)}}, nil)
		if err != nil {
			return 0, false, fmt.Errorf("lead update: %w", err)
		}
		return existing, true, nil
	}

	tagIDs, err := o.tagIDs(ctx, "Google Maps", l.Category, "Priority: "+l.Priority.String())
	if err != nil {
		return 0, false, fmt.Errorf("tags: %w", err)
	}

	vals := map[string]any{
		"name":        fmt.Sprintf("%s - %s Lead", l.Name, o.city),
		"partner_id":  partnerID,
		"type":        o.leadType,
		"phone":       optVal(l.Phone),
		"email_from":  optVal(l.Email),
		"website":     optVal(l.Website),
		"street":      l.Address,
		"city":        o.city,
		"priority":    fmt.Sprint(l.Priority.RemoteLevel()),
		"tag_ids":     []any{[]any{6, 0, tagIDs}},
		"description": o.description(l),
		"user_id":     o.uid,
	}
	if o.countryID > 0 {
		vals["country_id"] = o.countryID
	}
	if o.stageID > 0 {
		vals["stage_id"] = o.stageID
	}
	id, err := o.create(ctx, "crm.lead", vals)
	if err != nil {
		return 0, false, fmt.Errorf("lead create: %w", err)
	}
	return id, false, nil
}

// resolveRefs looks up the "New" stage (or the first stage) and the
// configured country once per client.
func (o *Odoo) resolveRefs(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.resolved {
		return nil
	}
	stage, ok, err := o.searchOne(ctx, "crm.stage", []any{cond("name", "=", "New")})
	if err != nil {
		return fmt.Errorf("stage lookup: %w", err)
	}
	if !ok {
		if stage, _, err = o.searchOne(ctx, "crm.stage", []any{}); err != nil {
			return fmt.Errorf("stage lookup: %w", err)
		}
	}
	o.stageID = stage

	if o.country != "" {
		country, _, err := o.searchOne(ctx, "res.country", []any{cond("name", "=", o.country)})
		if err != nil {
			return fmt.Errorf("country lookup: %w", err)
		}
		o.countryID = country
	}
	o.resolved = true
	return nil
}

func (o *Odoo) partnerFor(ctx context.Context, l domain.Lead) (int64, error) {
	id, ok, err := o.searchOne(ctx, "res.partner", []any{cond("name", "=", l.Name)})
	if err != nil || ok {
		return id, err
	}
	vals := map[string]any{
		"name":         l.Name,
		"phone":        optVal(l.Phone),
		"email":        optVal(l.Email),
		"website":      optVal(l.Website),
		"street":       l.Address,
		"city":         o.city,
		"is_company":   true,
		"company_type": "company",
		"comment":      "Created from " + l.Source + " - " + l.Category,
	}
	if o.countryID > 0 {
		vals["country_id"] = o.countryID
	}
	return o.create(ctx, "res.partner", vals)
}

func (o *Odoo) tagIDs(ctx context.Context, names ...string) ([]int64, error) {
	ids := []int64{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		o.mu.Lock()
		id, cached := o.tags[name]
		o.mu.Unlock()
		if !cached {
			var ok bool
			var err error
			id, ok, err = o.searchOne(ctx, "crm.tag", []any{cond("name", "=", name)})
			if err != nil {
				return nil, err
			}
			if !ok {
				if id, err = o.create(ctx, "crm.tag", map[string]any{"name": name}); err != nil {
					return nil, err
				}
			}
			o.mu.Lock()
			o.tags[name] = id
			o.mu.Unlock()
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (o *Odoo) description(l domain.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead from %s\n\n", l.Source)
	fmt.Fprintf(&b, "Category: %s\n", l.Category)
	fmt.Fprintf(&b, "Search Term: %s\n", l.SearchTerm)
	fmt.Fprintf(&b, "Quality Score: %d/10\n", l.QualityScore)
	fmt.Fprintf(&b, "Priority: %s\n\n", l.Priority)
	fmt.Fprintf(&b, "Phone: %s\n", l.Phone.Or("N/A"))
	fmt.Fprintf(&b, "Email: %s\n", l.Email.Or("N/A"))
	fmt.Fprintf(&b, "Website: %s\n", l.Website.Or("N/A"))
	fmt.Fprintf(&b, "Address: %s\n\n", l.Address)
	fmt.Fprintf(&b, "Scraped At: %s\n", l.TimestampString())
	return b.String()
}

func (o *Odoo) updateNote(l domain.Lead) string {
	return fmt.Sprintf("Updated from %s on %s\nCategory: %s\nSearch Term: %s\nQuality Score: %d/10\n",
		l.Source, o.now().UTC().Format("2006-01-02 15:04:05"), l.Category, l.SearchTerm, l.QualityScore)
}

// Stats counts crm.lead records created on the given day (in day's
// location).
func (o *Odoo) Stats(ctx context.Context, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).UTC()
	end := start.Add(24 * time.Hour)
	const layout = "2006-01-02 15:04:05"

	raw, err := o.execute(ctx, "crm.lead", "search_count", []any{[]any{
		cond("create_date", ">=", start.Format(layout)),
		cond("create_date", "<", end.Format(layout)),
	}}, nil)
	if err != nil {
		return 0, fmt.Errorf("odoo stats: %w", err)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("odoo stats: %w", err)
	}
	return n, nil
}
