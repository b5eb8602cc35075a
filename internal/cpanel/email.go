package cpanel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bradenaw/juniper/xslices"
	"github.com/tidwall/gjson"

	"github.com/animxo/mailpanel/internal/model"
)

const (
	// Wildcard as the configured domain means each address supplies its own.
	Wildcard = "*"

	// DefaultQuotaMB applies when a caller omits the quota.
	DefaultQuotaMB = 25
)

var (
	errInvalidUsername = errors.New("Invalid username format")
	errInvalidDomain   = errors.New("Invalid domain configuration")
)

// PanelMailbox is one row of the panel's mailbox listing.
type PanelMailbox struct {
	Email     string  `json:"email"`
	User      string  `json:"user"`
	Domain    string  `json:"domain"`
	QuotaMB   float64 `json:"quota"`
	DiskUsed  float64 `json:"diskused"`
	Suspended bool    `json:"suspended"`
}

// Address returns the full address, built from user and domain when the
// panel omitted it.
func (m PanelMailbox) Address() string {
	if m.Email != "" {
		return m.Email
	}
	if m.User != "" && m.Domain != "" {
		return m.User + "@" + m.Domain
	}
	return m.User
}

// SplitAddress splits "user@domain". A bare username yields an empty domain.
func SplitAddress(address string) (user, domain string) {
	user, domain, _ = strings.Cut(address, "@")
	return user, strings.ToLower(domain)
}

// resolveDomain picks the panel domain for an operation. An address outside
// the configured domain is rejected; a bare username takes the configured
// domain. With the wildcard the address supplies its own.
func (c *Client) resolveDomain(addressDomain string) (string, error) {
	switch c.cfg.Domain {
	case "":
		return "", errInvalidDomain
	case Wildcard:
		if addressDomain == "" {
			return "", errInvalidDomain
		}
		return addressDomain, nil
	default:
		if addressDomain != "" && !strings.EqualFold(addressDomain, c.cfg.Domain) {
			return "", fmt.Errorf("Email must be for %s domain", c.cfg.Domain)
		}
		return c.cfg.Domain, nil
	}
}

func invalid(err error) *Envelope {
	return failure(http.StatusBadRequest, nil, err.Error())
}

// CreateMailbox provisions username@<configured domain>. A non-positive quota
// falls back to DefaultQuotaMB.
func (c *Client) CreateMailbox(ctx context.Context, username, password string, quotaMB int) *Envelope {
	if username == "" || strings.ContainsAny(username, "@ \t\r\n") {
		return invalid(errInvalidUsername)
	}
	domain, err := c.resolveDomain("")
	if err != nil {
		return invalid(err)
	}
	if quotaMB <= 0 {
		quotaMB = DefaultQuotaMB
	}

	return c.Execute(ctx, "Email", "add_pop", url.Values{
		"email":    {username},
		"password": {password},
		"quota":    {strconv.Itoa(quotaMB)},
		"domain":   {domain},
	})
}

// DeleteMailbox removes a mailbox. identifier may be a bare username or a
// full address.
func (c *Client) DeleteMailbox(ctx context.Context, identifier string) *Envelope {
	user, addrDomain := SplitAddress(identifier)
	if user == "" {
		return invalid(errInvalidUsername)
	}
	domain, err := c.resolveDomain(addrDomain)
	if err != nil {
		return invalid(err)
	}

	return c.Execute(ctx, "Email", "delete_pop", url.Values{
		"email":  {user},
		"domain": {domain},
	})
}

// ChangePassword sets a new password for an existing mailbox address.
func (c *Client) ChangePassword(ctx context.Context, address, newPassword string) *Envelope {
	user, addrDomain := SplitAddress(address)
	if user == "" {
		return invalid(errInvalidUsername)
	}
	domain, err := c.resolveDomain(addrDomain)
	if err != nil {
		return invalid(err)
	}

	return c.Execute(ctx, "Email", "passwd_pop", url.Values{
		"email":    {user},
		"password": {newPassword},
		"domain":   {domain},
	})
}

// UpdateQuota sets the mailbox quota in megabytes.
func (c *Client) UpdateQuota(ctx context.Context, address string, quotaMB int) *Envelope {
	user, addrDomain := SplitAddress(address)
	if user == "" {
		return invalid(errInvalidUsername)
	}
	domain, err := c.resolveDomain(addrDomain)
	if err != nil {
		return invalid(err)
	}

	return c.Execute(ctx, "Email", "edit_pop_quota", url.Values{
		"email":  {user},
		"domain": {domain},
		"quota":  {strconv.Itoa(quotaMB)},
	})
}

// ListDomains returns every domain on the panel account.
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	env := c.Execute(ctx, "DomainInfo", "list_domains", nil)
	if err := env.ErrOr("Failed to get domains"); err != nil {
		return nil, err
	}
	return parseDomains(gjson.ParseBytes(env.Data)), nil
}

// parseDomains accepts either a plain list or the panel's grouped object.
func parseDomains(data gjson.Result) []string {
	domains := []string{}
	add := func(r gjson.Result) {
		if s := r.String(); s != "" {
			domains = append(domains, s)
		}
	}

	if data.IsArray() {
		data.ForEach(func(_, v gjson.Result) bool { add(v); return true })
		return domains
	}

	add(data.Get("main_domain"))
	for _, group := range []string{"addon_domains", "sub_domains", "parked_domains"} {
		data.Get(group).ForEach(func(_, v gjson.Result) bool { add(v); return true })
	}
	return domains
}

// listPops returns the raw mailbox rows from function, scoped to domain when
// it is non-empty.
func (c *Client) listPops(ctx context.Context, function, domain, fallback string) ([]PanelMailbox, error) {
	params := url.Values{}
	if domain != "" {
		params.Set("domain", domain)
	}
	env := c.Execute(ctx, "Email", function, params)
	if err := env.ErrOr(fallback); err != nil {
		return nil, err
	}
	if !env.HasData() {
		return nil, &APIError{Status: env.Status, Message: fallback}
	}

	var rows []PanelMailbox
	gjson.ParseBytes(env.Data).ForEach(func(_, v gjson.Result) bool {
		rows = append(rows, parsePanelMailbox(v))
		return true
	})
	return rows, nil
}

func parsePanelMailbox(v gjson.Result) PanelMailbox {
	suspended := v.Get("suspended")
	if !suspended.Exists() {
		suspended = v.Get("suspended_login")
	}
	quota := v.Get("quota")
	if !quota.Exists() {
		quota = v.Get("diskquota")
	}
	return PanelMailbox{
		Email:     v.Get("email").String(),
		User:      v.Get("user").String(),
		Domain:    v.Get("domain").String(),
		QuotaMB:   number(quota),
		DiskUsed:  number(v.Get("diskused")),
		Suspended: suspended.Bool(),
	}
}

// number reads a numeric field the panel may send as a number or a string.
// Anything unparseable, including "unlimited", is 0.
func number(r gjson.Result) float64 {
	switch r.Type {
	case gjson.Number:
		return r.Float()
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.String()), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func toEntry(now time.Time) func(PanelMailbox) model.PanelEntry {
	return func(m PanelMailbox) model.PanelEntry {
		storage := int(m.QuotaMB)
		if storage <= 0 {
			storage = DefaultQuotaMB
		}
		status := model.StatusActive
		if m.Suspended {
			status = model.StatusSuspended
		}
		addr := m.Address()
		return model.PanelEntry{
			ID:          addr,
			Email:       addr,
			Storage:     storage,
			StorageUsed: int(m.DiskUsed),
			Status:      status,
			CreatedAt:   now,
		}
	}
}

// Stats summarizes the mailboxes of domain, or of the configured domain when
// domain is empty.
func (c *Client) Stats(ctx context.Context, domain string) (*model.PanelStats, error) {
	if domain == "" && c.cfg.Domain != Wildcard {
		domain = c.cfg.Domain
	}
	rows, err := c.listPops(ctx, "list_pops", domain, "Failed to get email stats")
	if err != nil {
		return nil, err
	}

	stats := &model.PanelStats{
		TotalAccounts: len(rows),
		Accounts:      xslices.Map(rows, toEntry(time.Now())),
	}
	for _, r := range rows {
		stats.TotalQuotaUsed += r.DiskUsed
		stats.TotalQuotaLimit += r.QuotaMB
	}
	return stats, nil
}

// ListMailboxes returns the mailboxes of the configured domain with their
// disk usage. With the wildcard domain every mailbox is returned.
func (c *Client) ListMailboxes(ctx context.Context) ([]model.PanelEntry, error) {
	rows, err := c.listPops(ctx, "list_pops_with_disk", "", "Failed to get email accounts")
	if err != nil {
		return nil, err
	}

	if c.cfg.Domain != Wildcard {
		rows = xslices.Filter(rows, func(m PanelMailbox) bool {
			if m.Domain != "" {
				return strings.EqualFold(m.Domain, c.cfg.Domain)
			}
			_, d := SplitAddress(m.Address())
			return d == strings.ToLower(c.cfg.Domain)
		})
	}
	return xslices.Map(rows, toEntry(time.Now())), nil
}

// MailboxInfo looks up a single mailbox by full address.
func (c *Client) MailboxInfo(ctx context.Context, address string) (*PanelMailbox, error) {
	_, addrDomain := SplitAddress(address)
	domain, err := c.resolveDomain(addrDomain)
	if err != nil {
		return nil, &APIError{Status: http.StatusBadRequest, Message: err.Error()}
	}
	rows, err := c.listPops(ctx, "list_pops_with_disk", domain, "Failed to get email accounts")
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if strings.EqualFold(rows[i].Address(), address) {
			return &rows[i], nil
		}
	}
	return nil, nil
}

// DiskUsage returns the panel's quota report verbatim.
func (c *Client) DiskUsage(ctx context.Context) (json.RawMessage, error) {
	env := c.Execute(ctx, "Quota", "get_quota_info", nil)
	if err := env.ErrOr("Failed to get disk usage"); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreateForwarder forwards mail for address to destination.
func (c *Client) CreateForwarder(ctx context.Context, address, destination string) *Envelope {
	user, addrDomain := SplitAddress(address)
	domain, err := c.resolveDomain(addrDomain)
	if err != nil {
		return invalid(err)
	}

	return c.Execute(ctx, "Email", "add_forwarder", url.Values{
		"domain":   {domain},
		"email":    {fmt.Sprintf("%s@%s", user, domain)},
		"fwdopt":   {"fwd"},
		"fwdemail": {destination},
	})
}

// DeleteForwarder removes every forwarder on address.
func (c *Client) DeleteForwarder(ctx context.Context, address string) *Envelope {
	user, addrDomain := SplitAddress(address)
	domain, err := c.resolveDomain(addrDomain)
	if err != nil {
		return invalid(err)
	}

	return c.Execute(ctx, "Email", "delete_forwarder", url.Values{
		"domain": {domain},
		"email":  {fmt.Sprintf("%s@%s", user, domain)},
	})
}

// TestConnection performs a cheap authenticated call.
func (c *Client) TestConnection(ctx context.Context) *Envelope {
	return c.Execute(ctx, "StatsBar", "get_stats", nil)
}
