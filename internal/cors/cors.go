package cors

import (
	"github.com/samber/lo"
)

const (
	allowMethods = "POST, OPTIONS"
	allowHeaders = "Content-Type"
)

type Policy struct {
	origins []string
}

func NewPolicy(origins []string) *Policy {
	return &Policy{origins: origins}
}

// Headers returns the CORS headers for a request from origin. A "*" entry
// allows any origin; otherwise only listed origins are echoed back.
func (p *Policy) Headers(origin string) map[string]string {
	headers := map[string]string{
		"Access-Control-Allow-Methods": allowMethods,
		"Access-Control-Allow-Headers": allowHeaders,
	}
	switch {
	case len(p.origins) == 0 || lo.Contains(p.origins, "*"):
		headers["Access-Control-Allow-Origin"] = "*"
	case origin != "" && lo.Contains(p.origins, origin):
		headers["Access-Control-Allow-Origin"] = origin
		headers["Vary"] = "Origin"
	}
	return headers
}
