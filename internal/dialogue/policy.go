package dialogue

import (
	"regexp"
	"time"

	"github.com/deskline/deskline/internal/config"
)

// mobileRe accepts exactly ten digits, nothing else.
var mobileRe = regexp.MustCompile(`^\d{10}$`)

// Birth date patterns. Format-only: day 01-31 and month 01-12, no calendar
// correctness check.
var (
	dateSlashRe = regexp.MustCompile(`^(0[1-9]|[12][0-9]|3[01])/(0[1-9]|1[0-2])/\d{4}$`)
	dateISORe   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$`)
)

// Policy carries the per-tenant dialogue tuning: keyword, attempt budget,
// timer durations, date format, and the labels used in replies.
type Policy struct {
	TenantID          string
	Greeting          string
	AttemptLimit      int
	InactivityTimeout time.Duration
	Lockout           time.Duration
	DateFormat        string
	ListHeader        string
	DetailHeader      string
}

// PolicyFromConfig builds a Policy from the loaded configuration.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		TenantID:          cfg.Tenant.ID,
		Greeting:          cfg.Dialogue.Greeting,
		AttemptLimit:      cfg.Dialogue.AttemptLimit,
		InactivityTimeout: time.Duration(cfg.Dialogue.InactivityTimeoutSec) * time.Second,
		Lockout:           time.Duration(cfg.Dialogue.LockoutSec) * time.Second,
		DateFormat:        cfg.Dialogue.DateFormat,
		ListHeader:        "*Associated Policies* :",
		DetailHeader:      "*Policy Details*",
	}
}

// applyDefaults fills zero fields so a partially built Policy (tests,
// embedders) behaves sensibly.
func (p *Policy) applyDefaults() {
	if p.Greeting == "" {
		p.Greeting = "hi agent"
	}
	if p.AttemptLimit <= 0 {
		p.AttemptLimit = 3
	}
	if p.InactivityTimeout <= 0 {
		p.InactivityTimeout = 2 * time.Minute
	}
	if p.Lockout <= 0 {
		p.Lockout = 2 * time.Minute
	}
	if p.DateFormat == "" {
		p.DateFormat = config.DateFormatSlash
	}
	if p.ListHeader == "" {
		p.ListHeader = "*Associated Policies* :"
	}
	if p.DetailHeader == "" {
		p.DetailHeader = "*Policy Details*"
	}
}

// validMobile reports whether the input is a well-formed mobile number.
func (p Policy) validMobile(s string) bool {
	return mobileRe.MatchString(s)
}

// validBirthDate reports whether the input matches the tenant's date format.
func (p Policy) validBirthDate(s string) bool {
	switch p.DateFormat {
	case config.DateFormatISO:
		return dateISORe.MatchString(s)
	default:
		return dateSlashRe.MatchString(s)
	}
}
