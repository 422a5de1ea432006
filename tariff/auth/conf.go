package auth

import "golang.org/x/oauth2/clientcredentials"

// Conf holds the client-credentials grant settings for a market API.
type Conf struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURL      string `json:"auth_url"`
}

// Enabled reports whether credentials were configured at all. Feeds hitting
// unauthenticated endpoints, the local mock included, leave Conf empty.
func (c Conf) Enabled() bool {
	return c.AuthURL != ""
}

func (c Conf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.AuthURL,
	}
}
