// Command sitesummarizer crawls a website and writes markdown summaries of
// its pages.
package main

import (
	"github.com/JakeFAU/site-summarizer/cmd"
)

func main() {
	cmd.Execute()
}
