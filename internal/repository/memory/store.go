// Package memory is an in-process implementation of the repository
// interfaces. It backs the service when no database is configured and the
// engine's end-to-end tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// Store holds every table in memory. Reads return copies; the expanded view
// labels are resolved from the reference tables at read time.
type Store struct {
	mu sync.RWMutex

	tickets      map[int64]*domain.Ticket
	messages     map[int64][]domain.TicketMessage
	attachments  map[int64][]domain.AttachmentReference
	history      map[int64][]domain.TicketHistory
	nextTicketID int64
	nextRowID    int64

	statuses   map[int]string
	severities map[int]string
	sites      map[int]string
	assets     map[int]domain.Asset
	categories map[int]string
	vendors    map[int]string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tickets:     map[int64]*domain.Ticket{},
		messages:    map[int64][]domain.TicketMessage{},
		attachments: map[int64][]domain.AttachmentReference{},
		history:     map[int64][]domain.TicketHistory{},
		statuses:    map[int]string{},
		severities:  map[int]string{},
		sites:       map[int]string{},
		assets:      map[int]domain.Asset{},
		categories:  map[int]string{},
		vendors:     map[int]string{},
	}
}

// NewSeeded returns a store holding the standard status and priority tables
// plus a few sites, assets and categories.
func NewSeeded() *Store {
	s := New()
	for id, label := range map[int]string{
		domain.StatusOpen:       "Open",
		domain.StatusInProgress: "In Progress",
		domain.StatusClosed:     "Closed",
		domain.StatusWaiting:    "Waiting on User",
		domain.StatusEscalated:  "Escalated",
		domain.StatusPending:    "Pending",
		7:                       "Cancelled",
		domain.StatusScheduled:  "Scheduled",
	} {
		s.statuses[id] = label
	}
	s.severities[domain.SeverityCritical] = "Critical"
	s.severities[domain.SeverityHigh] = "High"
	s.severities[domain.SeverityMedium] = "Medium"
	s.severities[domain.SeverityLow] = "Low"
	s.sites[1] = "Headquarters"
	s.sites[2] = "Warehouse"
	s.sites[3] = "Retail Store"
	s.AddAsset(domain.Asset{ID: 1, Label: "POS Terminal 1", SiteID: intPtr(3)})
	s.AddAsset(domain.Asset{ID: 2, Label: "Label Printer", SiteID: intPtr(2)})
	s.AddAsset(domain.Asset{ID: 3, Label: "Core Switch", SiteID: intPtr(1)})
	s.categories[1] = "Hardware"
	s.categories[2] = "Software"
	s.categories[3] = "Network"
	s.vendors[1] = "Acme Field Services"
	return s
}

func intPtr(i int) *int { return &i }

// AddStatus inserts or replaces a status row.
func (s *Store) AddStatus(st domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[st.ID] = st.Label
}

// AddSeverity inserts or replaces a priority row.
func (s *Store) AddSeverity(sev domain.Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.severities[sev.ID] = sev.Level
}

// AddSite inserts or replaces a site row.
func (s *Store) AddSite(site domain.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site.ID] = site.Label
}

// AddAsset inserts or replaces an asset row.
func (s *Store) AddAsset(a domain.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = a
}

// AddCategory inserts or replaces a category row.
func (s *Store) AddCategory(c domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c.Label
}

// AddVendor inserts or replaces a vendor row.
func (s *Store) AddVendor(v domain.Vendor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[v.ID] = v.Name
}

// AddAttachment links attachment metadata to a ticket.
func (s *Store) AddAttachment(att domain.AttachmentReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRowID++
	att.ID = s.nextRowID
	s.attachments[att.TicketID] = append(s.attachments[att.TicketID], att)
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Tickets:     ticketStore{s},
		References:  referenceStore{s},
		Messages:    messageStore{s},
		Attachments: attachmentStore{s},
		History:     historyStore{s},
		Users:       userStore{s},
		Analytics:   analyticsStore{s},
	}
}

// expand returns a copy of t with view labels filled in. Callers hold mu.
func (s *Store) expand(t *domain.Ticket) domain.Ticket {
	out := t.Clone()
	out.StatusLabel = labelOf(s.statuses, &out.StatusID)
	out.PriorityLevel = labelOf(s.severities, out.SeverityID)
	out.SiteLabel = labelOf(s.sites, out.SiteID)
	out.CategoryLabel = labelOf(s.categories, out.CategoryID)
	out.VendorName = labelOf(s.vendors, out.VendorID)
	out.AssetLabel = nil
	if out.AssetID != nil {
		if a, ok := s.assets[*out.AssetID]; ok {
			label := a.Label
			out.AssetLabel = &label
		}
	}
	return *out
}

func labelOf(table map[int]string, id *int) *string {
	if id == nil {
		return nil
	}
	label, ok := table[*id]
	if !ok {
		return nil
	}
	return &label
}

// view returns the expanded rows matching preds, unsorted. Callers hold mu.
func (s *Store) view(preds []query.Predicate) []domain.Ticket {
	plan := query.Plan{Predicates: preds}
	out := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		row := s.expand(t)
		if plan.Matches(&row) {
			out = append(out, row)
		}
	}
	return out
}

type ticketStore struct{ s *Store }

func (r ticketStore) Find(ctx context.Context, plan query.Plan) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	rows := r.s.view(plan.Predicates)
	r.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	query.SortTickets(rows, plan.Order)

	if plan.Offset >= len(rows) {
		return []domain.Ticket{}, nil
	}
	rows = rows[plan.Offset:]
	if plan.Limit > 0 && plan.Limit < len(rows) {
		rows = rows[:plan.Limit]
	}
	return rows, nil
}

func (r ticketStore) Count(ctx context.Context, preds []query.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.view(preds)), nil
}

func (r ticketStore) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	row := r.s.expand(t)
	return &row, nil
}

func (r ticketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextTicketID++
	ticket.ID = r.s.nextTicketID
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketStore) UpdateFields(ctx context.Context, cmd repository.UpdateCommand) (int, error) {
	if len(cmd.Changes) == 0 {
		return 0, fmt.Errorf("update without changes")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.tickets[cmd.TicketID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if current.Version != cmd.ExpectedVersion {
		return 0, &repository.VersionConflictError{TicketID: cmd.TicketID, Expected: cmd.ExpectedVersion, Current: current.Version}
	}

	next := current.Clone()
	for _, ch := range cmd.Changes {
		if err := next.SetField(ch.Field, ch.New); err != nil {
			return 0, err
		}
	}
	modifiedAt := cmd.ModifiedAt
	modifiedBy := cmd.ModifiedBy
	next.LastModified = &modifiedAt
	next.LastModifiedBy = &modifiedBy
	next.Version++
	r.s.tickets[cmd.TicketID] = next

	for _, ch := range cmd.Changes {
		r.s.nextRowID++
		r.s.history[cmd.TicketID] = append(r.s.history[cmd.TicketID], domain.TicketHistory{
			ID:        r.s.nextRowID,
			TicketID:  cmd.TicketID,
			Field:     ch.Field,
			OldValue:  repository.HistoryValue(ch.Old),
			NewValue:  repository.HistoryValue(ch.New),
			ChangedBy: cmd.ModifiedBy,
			ChangedAt: cmd.ModifiedAt,
			Version:   next.Version,
		})
	}
	return next.Version, nil
}

type referenceStore struct{ s *Store }

func (r referenceStore) Exists(ctx context.Context, table repository.ReferenceTable, id int) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ok bool
	switch table {
	case repository.RefStatus:
		_, ok = r.s.statuses[id]
	case repository.RefSeverity:
		_, ok = r.s.severities[id]
	case repository.RefSite:
		_, ok = r.s.sites[id]
	case repository.RefAsset:
		_, ok = r.s.assets[id]
	case repository.RefCategory:
		_, ok = r.s.categories[id]
	case repository.RefVendor:
		_, ok = r.s.vendors[id]
	default:
		return false, fmt.Errorf("unknown reference table %q", table)
	}
	return ok, nil
}

func (r referenceStore) Statuses(ctx context.Context) ([]domain.Status, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Status, 0, len(r.s.statuses))
	for id, label := range r.s.statuses {
		out = append(out, domain.Status{ID: id, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r referenceStore) Severities(ctx context.Context) ([]domain.Severity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Severity, 0, len(r.s.severities))
	for id, level := range r.s.severities {
		out = append(out, domain.Severity{ID: id, Level: level})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r referenceStore) Sites(ctx context.Context) ([]domain.Site, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Site, 0, len(r.s.sites))
	for id, label := range r.s.sites {
		out = append(out, domain.Site{ID: id, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r referenceStore) Assets(ctx context.Context, siteID *int) ([]domain.Asset, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Asset{}
	for _, a := range r.s.assets {
		if siteID != nil && (a.SiteID == nil || *a.SiteID != *siteID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r referenceStore) Categories(ctx context.Context) ([]domain.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Category, 0, len(r.s.categories))
	for id, label := range r.s.categories {
		out = append(out, domain.Category{ID: id, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (r referenceStore) Vendors(ctx context.Context) ([]domain.Vendor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Vendor, 0, len(r.s.vendors))
	for id, name := range r.s.vendors {
		out = append(out, domain.Vendor{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type messageStore struct{ s *Store }

func (r messageStore) Create(ctx context.Context, msg *domain.TicketMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[msg.TicketID]; !ok {
		return repository.ErrNotFound
	}
	r.s.nextRowID++
	msg.ID = r.s.nextRowID
	r.s.messages[msg.TicketID] = append(r.s.messages[msg.TicketID], *msg)
	return nil
}

func (r messageStore) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.TicketMessage{}, r.s.messages[ticketID]...), nil
}

type attachmentStore struct{ s *Store }

func (r attachmentStore) ListByTicket(ctx context.Context, ticketID int64) ([]domain.AttachmentReference, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.AttachmentReference{}, r.s.attachments[ticketID]...), nil
}

type historyStore struct{ s *Store }

func (r historyStore) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.TicketHistory{}, r.s.history[ticketID]...), nil
}

type userStore struct{ s *Store }

func (r userStore) ProfileByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var profile *domain.UserProfile
	for _, t := range r.s.tickets {
		if t.ContactEmail == nil || strings.ToLower(*t.ContactEmail) != email {
			continue
		}
		if profile == nil {
			profile = &domain.UserProfile{Email: email}
		}
		profile.TotalTickets++
		if !query.IsClosedStatus(t.StatusID) {
			profile.OpenTickets++
		}
		if t.ContactName != nil && (profile.Name == nil || *t.ContactName > *profile.Name) {
			name := *t.ContactName
			profile.Name = &name
		}
		if profile.LastTicketAt == nil || t.CreatedAt.After(*profile.LastTicketAt) {
			created := t.CreatedAt
			profile.LastTicketAt = &created
		}
	}
	if profile == nil {
		return nil, repository.ErrNotFound
	}
	return profile, nil
}

type analyticsStore struct{ s *Store }

func (r analyticsStore) GroupCount(ctx context.Context, g repository.Grouping, preds []query.Predicate) ([]domain.CountBucket, error) {
	keyField, ok := query.Lookup(g.Key)
	if !ok {
		return nil, fmt.Errorf("unknown grouping field %q", g.Key)
	}
	labelField, ok := query.Lookup(g.Label)
	if !ok {
		return nil, fmt.Errorf("unknown grouping field %q", g.Label)
	}

	r.s.mu.RLock()
	rows := r.s.view(preds)
	r.s.mu.RUnlock()

	buckets := map[string]*domain.CountBucket{}
	for i := range rows {
		key := ""
		if v := keyField.Value(&rows[i]); v != nil {
			key = fmt.Sprint(v)
		}
		b, ok := buckets[key]
		if !ok {
			b = &domain.CountBucket{Key: key}
			buckets[key] = b
		}
		b.Count++
		if label, ok := labelField.Value(&rows[i]).(string); ok && label > b.Label {
			b.Label = label
		}
	}

	out := make([]domain.CountBucket, 0, len(buckets))
	for _, b := range buckets {
		if b.Label == "" {
			b.Label = "Unknown"
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (r analyticsStore) CreatedPerDay(ctx context.Context, since time.Time) ([]domain.TrendPoint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := map[time.Time]int{}
	for _, t := range r.s.tickets {
		if t.CreatedAt.Before(since) {
			continue
		}
		day := t.CreatedAt.UTC().Truncate(24 * time.Hour)
		counts[day]++
	}
	out := make([]domain.TrendPoint, 0, len(counts))
	for day, n := range counts {
		out = append(out, domain.TrendPoint{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}
