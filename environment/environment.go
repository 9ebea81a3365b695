package environment

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// ProductionURL is the production API base URL.
	ProductionURL = "https://api.userede.com.br/erede"
	// SandboxURL is the sandbox API base URL.
	SandboxURL = "https://api.userede.com.br/desenvolvedores"
	// Version is the API version path segment.
	Version = "v1"

	// ProductionTokenURL is the production OAuth2 token endpoint.
	ProductionTokenURL = "https://api.userede.com.br/redelabs/oauth2/token"
	// SandboxTokenURL is the sandbox OAuth2 token endpoint. It lives on a separate host
	// and is not derived from SandboxURL.
	SandboxTokenURL = "https://rl7-sandbox-api.useredecloud.com.br/oauth2/token"

	// TokenPath is appended to a custom base URL to derive its token endpoint.
	TokenPath = "/oauth2/token"
)

// Kind identifies which environment variant an Environment was built from.
type Kind int

const (
	// Production is the live e.Rede API.
	Production Kind = iota
	// Sandbox is the e.Rede developer sandbox.
	Sandbox
	// Custom is any other base URL (mock servers, proxies, staging).
	Custom
)

func (k Kind) String() string {
	switch k {
	case Production:
		return "production"
	case Sandbox:
		return "sandbox"
	case Custom:
		return "custom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Consumer is the optional end-customer context forwarded to collaborators that serialize
// transaction bodies. It has no effect on endpoint or token resolution.
type Consumer struct {
	IP        string
	SessionID string
}

// Environment holds the resolved API root and OAuth2 token endpoint.
//
// Everything except the token endpoint override and the consumer context is fixed at
// construction time.
type Environment struct {
	kind     Kind
	baseURL  string
	endpoint string
	tokenURL string
	consumer Consumer
}

// ForProduction returns the preconfigured production environment.
func ForProduction() *Environment {
	return resolve(Production, ProductionURL)
}

// ForSandbox returns the preconfigured sandbox environment.
func ForSandbox() *Environment {
	return resolve(Sandbox, SandboxURL)
}

// NewCustom returns an environment rooted at baseURL. Its API root is baseURL/Version/ and its
// token endpoint is baseURL plus TokenPath, both with any trailing slash of baseURL trimmed. A baseURL equal to ProductionURL or SandboxURL
// resolves to that environment's fixed token endpoint.
func NewCustom(baseURL string) *Environment {
	switch baseURL {
	case ProductionURL:
		return resolve(Production, baseURL)
	case SandboxURL:
		return resolve(Sandbox, baseURL)
	default:
		return resolve(Custom, baseURL)
	}
}

// resolve dispatches to the token endpoint resolver of each variant.
func resolve(kind Kind, baseURL string) *Environment {
	env := &Environment{
		kind:     kind,
		baseURL:  baseURL,
		endpoint: fmt.Sprintf("%s/%s/", strings.TrimRight(baseURL, "/"), Version),
	}

	switch kind {
	case Production:
		env.tokenURL = ProductionTokenURL
	case Sandbox:
		env.tokenURL = SandboxTokenURL
	default:
		env.tokenURL = strings.TrimRight(baseURL, "/") + TokenPath
	}

	return env
}

// Kind reports the environment variant.
func (e *Environment) Kind() Kind {
	return e.kind
}

// BaseURL returns the base URL the environment was built from.
func (e *Environment) BaseURL() string {
	return e.baseURL
}

// APIRoot returns the versioned API root, always ending in a slash.
func (e *Environment) APIRoot() string {
	return e.endpoint
}

// Endpoint returns the full URL of a service path below the API root.
func (e *Environment) Endpoint(service string) string {
	return e.endpoint + service
}

// TokenURL returns the OAuth2 token endpoint. An empty value means the environment is
// unauthenticated and no bearer token is ever requested for it.
func (e *Environment) TokenURL() string {
	return e.tokenURL
}

// Authenticated reports whether requests to this environment carry a bearer token.
func (e *Environment) Authenticated() bool {
	return e.tokenURL != ""
}

// SetTokenURL overrides the OAuth2 token endpoint. Passing "" disables authentication.
func (e *Environment) SetTokenURL(tokenURL string) *Environment {
	e.tokenURL = tokenURL
	return e
}

// SetConsumer sets the end-customer context.
func (e *Environment) SetConsumer(ip, sessionID string) *Environment {
	e.consumer = Consumer{IP: ip, SessionID: sessionID}
	return e
}

// Consumer returns the end-customer context.
func (e *Environment) Consumer() Consumer {
	return e.consumer
}

type consumerJSON struct {
	IP        *string `json:"ip"`
	SessionID *string `json:"sessionId"`
}

// MarshalJSON renders the consumer context as {"consumer":{"ip":...,"sessionId":...}}.
// Unset fields are encoded as null.
func (e *Environment) MarshalJSON() ([]byte, error) {
	var c consumerJSON
	if e.consumer.IP != "" {
		ip := e.consumer.IP
		c.IP = &ip
	}
	if e.consumer.SessionID != "" {
		sid := e.consumer.SessionID
		c.SessionID = &sid
	}

	return json.Marshal(struct {
		Consumer consumerJSON `json:"consumer"`
	}{Consumer: c})
}
