package util

import (
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9\s\-().]*$`)
	digitRe = regexp.MustCompile(`[0-9]`)
)

// ValidName 姓名：去除空白后至少 2 个字符
func ValidName(s string) bool {
	return len(strings.TrimSpace(s)) >= 2
}

func ValidEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// ValidPhone 允许分隔符与国家码前缀，至少 7 位数字
func ValidPhone(s string) bool {
	s = strings.TrimSpace(s)
	if !phoneRe.MatchString(s) {
		return false
	}
	return len(digitRe.FindAllString(s, -1)) >= 7
}
