package model

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// AuthLevel selects which credential a bot API call carries.
type AuthLevel int

const (
	AuthPublic AuthLevel = iota
	AuthAuthenticated
	AuthAdmin
)

func (a AuthLevel) String() string {
	switch a {
	case AuthPublic:
		return "public"
	case AuthAuthenticated:
		return "authenticated"
	case AuthAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// FallbackKind names the synthetic payload an operation degrades to.
type FallbackKind int

const (
	FallbackNone FallbackKind = iota
	FallbackHealth
	FallbackStatus
	FallbackBotStats
	FallbackFleet
	FallbackOverview
)

// Operation enumerates every bot API call the client knows how to make.
type Operation int

const (
	OpHealth Operation = iota
	OpStatus
	OpPing
	OpBotStats
	OpShards
	OpShardsDetailed
	OpDashboard
	OpOverview
	OpPerformance
	OpCommands
	OpCommandNames
	OpCommandStats
	OpGuilds
	OpGuild
	OpSearchGuild
	OpShard
	OpAdminStats
	OpAdminSystem
	OpAdminCache

	opCount
)

// OperationSpec is the static description of an operation.
type OperationSpec struct {
	// Path is relative to the API base URL; {id} is substituted from Params.
	Path     string
	Auth     AuthLevel
	TTL      time.Duration
	Fallback FallbackKind
}

var operations = [opCount]OperationSpec{
	OpHealth:         {Path: "health", Auth: AuthPublic, TTL: 30 * time.Second, Fallback: FallbackHealth},
	OpStatus:         {Path: "status", Auth: AuthPublic, TTL: 30 * time.Second, Fallback: FallbackStatus},
	OpPing:           {Path: "ping", Auth: AuthPublic},
	OpBotStats:       {Path: "bot/stats", Auth: AuthAuthenticated, TTL: time.Minute, Fallback: FallbackBotStats},
	OpShards:         {Path: "shards", Auth: AuthAuthenticated, TTL: 30 * time.Second, Fallback: FallbackFleet},
	OpShardsDetailed: {Path: "shards/detailed", Auth: AuthAuthenticated, TTL: 30 * time.Second, Fallback: FallbackFleet},
	OpDashboard:      {Path: "dashboard", Auth: AuthAuthenticated, TTL: time.Minute, Fallback: FallbackOverview},
	OpOverview:       {Path: "overview", Auth: AuthAuthenticated, TTL: time.Minute, Fallback: FallbackOverview},
	OpPerformance:    {Path: "performance", Auth: AuthAuthenticated, TTL: 30 * time.Second},
	OpCommands:       {Path: "commands", Auth: AuthAuthenticated, TTL: 5 * time.Minute},
	OpCommandNames:   {Path: "commands/names", Auth: AuthAuthenticated, TTL: 5 * time.Minute},
	OpCommandStats:   {Path: "commands/stats", Auth: AuthAuthenticated, TTL: time.Minute},
	OpGuilds:         {Path: "guilds", Auth: AuthAuthenticated, TTL: 5 * time.Minute},
	OpGuild:          {Path: "guild/{id}", Auth: AuthAuthenticated, TTL: 2 * time.Minute},
	OpSearchGuild:    {Path: "search/guild/{id}", Auth: AuthAuthenticated},
	OpShard:          {Path: "shard/{id}", Auth: AuthAuthenticated, TTL: 30 * time.Second},
	OpAdminStats:     {Path: "admin/stats", Auth: AuthAdmin, TTL: 30 * time.Second},
	OpAdminSystem:    {Path: "admin/system", Auth: AuthAdmin, TTL: 30 * time.Second},
	OpAdminCache:     {Path: "admin/cache", Auth: AuthAdmin},
}

// Operations lists every known operation in declaration order.
func Operations() []Operation {
	ops := make([]Operation, 0, opCount)
	for op := Operation(0); op < opCount; op++ {
		ops = append(ops, op)
	}
	return ops
}

func (o Operation) Valid() bool { return o >= 0 && o < opCount }

// Spec returns the static description; an invalid operation yields the zero spec.
func (o Operation) Spec() OperationSpec {
	if !o.Valid() {
		return OperationSpec{}
	}
	return operations[o]
}

// String is the operation's path template, which doubles as its logical name.
func (o Operation) String() string {
	if !o.Valid() {
		return fmt.Sprintf("operation(%d)", int(o))
	}
	return operations[o].Path
}

// Parameterized reports whether the path needs an {id}.
func (o Operation) Parameterized() bool {
	return strings.Contains(o.Spec().Path, "{id}")
}

func (o Operation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Operation) UnmarshalText(b []byte) error {
	op, ok := ParseOperation(string(b))
	if !ok {
		return &Error{Kind: KindValidation, Message: fmt.Sprintf("unknown operation %q", string(b))}
	}
	*o = op
	return nil
}

// ParseOperation resolves a path template ("shards/detailed", "guild/{id}").
func ParseOperation(name string) (Operation, bool) {
	for op := Operation(0); op < opCount; op++ {
		if operations[op].Path == name {
			return op, true
		}
	}
	return 0, false
}

// Params carries the path id and any query arguments of a call.
type Params map[string]string

// ParamID is the key substituted into {id}.
const ParamID = "id"

// Canonical renders params in a stable order for hashing.
func (p Params) Canonical() string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[k]))
	}
	return b.String()
}

// Resolve builds the relative URL (path plus query) for o.
func (o Operation) Resolve(p Params) (string, error) {
	if !o.Valid() {
		return "", &Error{Kind: KindValidation, Op: o.String(), Message: "unknown operation"}
	}

	path := operations[o].Path
	query := url.Values{}
	for k, v := range p {
		if k == ParamID && o.Parameterized() {
			continue
		}
		query.Set(k, v)
	}

	if o.Parameterized() {
		id := p[ParamID]
		if id == "" {
			return "", &Error{Kind: KindValidation, Op: o.String(), Message: "missing id parameter"}
		}
		path = strings.Replace(path, "{id}", url.PathEscape(id), 1)
	}

	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return path, nil
}
