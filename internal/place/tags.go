package place

import "strings"

// ParseTags はカンマ区切りのタグ文字列を分解する。
// 各要素は前後の空白を除去し、空要素は捨てる。
// 入力順と重複はそのまま保持する（正規化や重複排除はしない）。
func ParseTags(raw string) []string {
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		tag := strings.TrimSpace(part)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
