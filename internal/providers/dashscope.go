package providers

import "strings"

// DashScope API roots per region.
const (
	DashScopeBeijing   = "https://dashscope.aliyuncs.com/api/v1"
	DashScopeSingapore = "https://dashscope-intl.aliyuncs.com/api/v1"
)

// DashScopeBaseURL returns the API root for region; anything but
// "singapore" selects the Beijing endpoint.
func DashScopeBaseURL(region string) string {
	if strings.EqualFold(strings.TrimSpace(region), "singapore") {
		return DashScopeSingapore
	}
	return DashScopeBeijing
}
