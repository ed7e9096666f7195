// Package bpath canonicalizes slash-separated paths. The retrieved bpath
// package carried only a go.mod; fd.Cwd_t.Canonicalpath calls
// bpath.Canonicalize, so this file supplies it.
package bpath

import "ustr"

// Canonicalize collapses "." and ".." components and repeated slashes in an
// absolute path, the way a kernel namei implementation needs its input
// pre-chewed before walking directory entries one component at a time.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	parts := splitNonEmpty(p)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}
	s := "/"
	for i, part := range out {
		if i > 0 {
			s += "/"
		}
		s += part
	}
	return ustr.Ustr(s)
}

func splitNonEmpty(p ustr.Ustr) []string {
	s := p.String()
	parts := make([]string, 0)
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '/' {
			if i > start {
				parts = append(parts, s[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
