package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide prints how to create a GitHub token suitable for crawling
func ShowTokenGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "GITHUB TOKEN GUIDE")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Fork listings of public repositories need no scopes. A token only")
	fmt.Fprintln(w, "raises the limit from 60 to 5000 requests per hour.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open https://github.com/settings/personal-access-tokens/new")
	fmt.Fprintln(w, "2. Choose \"Public repositories (read-only)\" and an expiry")
	fmt.Fprintln(w, "3. Generate the token and copy it (it starts with github_pat_)")
	fmt.Fprintln(w, "4. Run: forkcrawl auth add <name> and paste it at the prompt")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Several tokens, ideally from different accounts, let the crawler")
	fmt.Fprintln(w, "rotate when one runs out of quota. Tokens may also be supplied as")
	fmt.Fprintln(w, "GITHUB_TOKEN_1, GITHUB_TOKEN_2, ... in the environment or a .env file.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
