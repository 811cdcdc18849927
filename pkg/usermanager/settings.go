package usermanager

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Response modes supported for authorization responses.
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
)

// Metadata holds the provider endpoints. When empty it is discovered from
// the authority's /.well-known/openid-configuration document.
type Metadata struct {
	Issuer                string `env:"ISSUER" yaml:"issuer" json:"issuer"`
	AuthorizationEndpoint string `env:"AUTHORIZATION_ENDPOINT" yaml:"authorization_endpoint" json:"authorization_endpoint"`
	TokenEndpoint         string `env:"TOKEN_ENDPOINT" yaml:"token_endpoint" json:"token_endpoint"`
	UserInfoEndpoint      string `env:"USERINFO_ENDPOINT" yaml:"userinfo_endpoint" json:"userinfo_endpoint"`
	JWKSURI               string `env:"JWKS_URI" yaml:"jwks_uri" json:"jwks_uri"`
	EndSessionEndpoint    string `env:"END_SESSION_ENDPOINT" yaml:"end_session_endpoint" json:"end_session_endpoint"`
	RevocationEndpoint    string `env:"REVOCATION_ENDPOINT" yaml:"revocation_endpoint" json:"revocation_endpoint"`
}

// IsZero reports whether no static metadata was configured.
func (m Metadata) IsZero() bool {
	return m.AuthorizationEndpoint == "" && m.TokenEndpoint == ""
}

// Settings is the flattened configuration of a UserManager.
type Settings struct {
	Authority             string `env:"AUTHORITY" yaml:"authority"`
	ClientID              string `env:"CLIENT_ID" yaml:"client_id"`
	ClientSecret          string `env:"CLIENT_SECRET" yaml:"client_secret"`
	RedirectURI           string `env:"REDIRECT_URI" yaml:"redirect_uri"`
	PopupRedirectURI      string `env:"POPUP_REDIRECT_URI" yaml:"popup_redirect_uri"`
	SilentRedirectURI     string `env:"SILENT_REDIRECT_URI" yaml:"silent_redirect_uri"`
	PostLogoutRedirectURI string `env:"POST_LOGOUT_REDIRECT_URI" yaml:"post_logout_redirect_uri"`

	Scope            string            `env:"SCOPE" envDefault:"openid" yaml:"scope"`
	ResponseMode     string            `env:"RESPONSE_MODE" envDefault:"query" yaml:"response_mode"`
	ExtraQueryParams map[string]string `env:"EXTRA_QUERY_PARAMS" yaml:"extra_query_params"`

	LoadUserInfo                        bool          `env:"LOAD_USER_INFO" envDefault:"false" yaml:"load_user_info"`
	FilterProtocolClaims                bool          `env:"FILTER_PROTOCOL_CLAIMS" envDefault:"true" yaml:"filter_protocol_claims"`
	AutomaticSilentRenew                bool          `env:"AUTOMATIC_SILENT_RENEW" envDefault:"true" yaml:"automatic_silent_renew"`
	AccessTokenExpiringNotificationTime time.Duration `env:"ACCESS_TOKEN_EXPIRING_NOTIFICATION_TIME" envDefault:"60s" yaml:"access_token_expiring_notification_time"`
	StaleStateAge                       time.Duration `env:"STALE_STATE_AGE" envDefault:"15m" yaml:"stale_state_age"`
	RevokeTokensOnSignout               bool          `env:"REVOKE_TOKENS_ON_SIGNOUT" envDefault:"false" yaml:"revoke_tokens_on_signout"`
	RevokeTokenTypes                    []TokenType   `env:"REVOKE_TOKEN_TYPES" envSeparator:"," envDefault:"access_token,refresh_token" yaml:"revoke_token_types"`

	Metadata Metadata `envPrefix:"METADATA_" yaml:"metadata"`
}

// Validate checks required settings and reports every problem at once.
func (s Settings) Validate() error {
	var errs []error
	if s.Authority == "" {
		errs = append(errs, ErrMissingAuthority)
	}
	if s.ClientID == "" {
		errs = append(errs, ErrMissingClientID)
	}
	if s.RedirectURI == "" {
		errs = append(errs, ErrMissingRedirectURI)
	}
	switch s.ResponseMode {
	case "", ResponseModeQuery, ResponseModeFragment:
	default:
		errs = append(errs, ErrInvalidResponseMode)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidSettings}, errs...)...)
	}
	return nil
}

// Scopes returns the configured scope split on whitespace.
func (s Settings) Scopes() []string {
	return strings.Fields(s.Scope)
}

// userStoreKey mirrors the key layout of browser-side clients so that a
// shared store can be inspected by both.
func (s Settings) userStoreKey() string {
	return "user:" + s.Authority + ":" + s.ClientID
}

func (s Settings) withDefaults() Settings {
	if s.Scope == "" {
		s.Scope = "openid"
	}
	if s.ResponseMode == "" {
		s.ResponseMode = ResponseModeQuery
	}
	if s.AccessTokenExpiringNotificationTime <= 0 {
		s.AccessTokenExpiringNotificationTime = 60 * time.Second
	}
	if s.StaleStateAge <= 0 {
		s.StaleStateAge = 15 * time.Minute
	}
	if len(s.RevokeTokenTypes) == 0 {
		s.RevokeTokenTypes = []TokenType{TokenTypeAccess, TokenTypeRefresh}
	}
	return s
}

func (s Settings) popupRedirectURI() string {
	if s.PopupRedirectURI != "" {
		return s.PopupRedirectURI
	}
	return s.RedirectURI
}

func (s Settings) silentRedirectURI() string {
	if s.SilentRedirectURI != "" {
		return s.SilentRedirectURI
	}
	return s.RedirectURI
}

// ResponseParams returns the authorization response parameters carried by
// loc, reading the query first and the fragment second.
func ResponseParams(loc *url.URL) url.Values {
	if loc == nil {
		return url.Values{}
	}
	if q := loc.Query(); q.Get("state") != "" || q.Get("code") != "" || q.Get("error") != "" {
		return q
	}
	frag, err := url.ParseQuery(strings.TrimPrefix(loc.Fragment, "#"))
	if err != nil {
		return url.Values{}
	}
	return frag
}
