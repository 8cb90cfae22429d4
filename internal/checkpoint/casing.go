// Package checkpoint resolves, downloads, and inspects pretrained BERT
// checkpoints.
package checkpoint

import "strings"

// LowerCase reports whether the checkpoint at path was trained on
// lower-cased text. Uncased and multilingual BERT releases both expect
// lower-cased input; everything else is cased.
func LowerCase(path string) bool {
	p := strings.ToLower(path)
	return strings.Contains(p, "uncased") || strings.Contains(p, "multilingual")
}
