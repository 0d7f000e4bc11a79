package credentials

import (
	"fmt"
	"io"
	"strings"
)

// ShowKeyGuide writes instructions for obtaining and storing a search key
func ShowKeyGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "BING IMAGE SEARCH API KEY")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Create a Bing Search resource in the Azure portal.")
	fmt.Fprintln(w, "2. Open the resource and copy one of the keys under 'Keys and Endpoint'.")
	fmt.Fprintln(w, "3. Store it with one of:")
	fmt.Fprintln(w, "     harvester auth set-key              (keychain or encrypted file)")
	fmt.Fprintln(w, "     export BING_SEARCH_API_KEY=<key>    (environment or .env)")
	fmt.Fprintln(w, "     harvester search --api-key <key> ...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Keys passed on the command line take precedence over the environment,")
	fmt.Fprintln(w, "which takes precedence over stored keys.")
	fmt.Fprintln(w, rule)
}
