package oauthserver

// ResponseType the type of authorization request
type ResponseType string

// define the type of authorization request
const (
	Code ResponseType = "code"
)

func (rt ResponseType) String() string {
	if rt == Code {
		return string(rt)
	}
	return ""
}

// GrantType authorization model
type GrantType string

// define authorization model
const (
	AuthorizationCode GrantType = "authorization_code"
	ClientCredentials GrantType = "client_credentials"
	Refreshing        GrantType = "refresh_token"
)

func (gt GrantType) String() string {
	if gt == AuthorizationCode ||
		gt == ClientCredentials ||
		gt == Refreshing {
		return string(gt)
	}
	return ""
}
