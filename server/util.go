package server

import "net/url"

// appendQuery adds params to raw's query string, returning the full URL.
// Used to build the final redirect to a client's redirect_uri carrying
// "code"/"state" (or the error shape used elsewhere via oautherrors).
func appendQuery(raw string, params map[string]string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
