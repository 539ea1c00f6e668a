package service

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var contentPolicy = bluemonday.StrictPolicy()

// SanitizeContent 去除标记并转义；本地创建与远程接收使用同一规则，且结果幂等，
// 因此各实例保存的内容逐字节一致
func SanitizeContent(s string) string {
	return contentPolicy.Sanitize(strings.TrimSpace(s))
}
