package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the worker banner
func PrintBanner(version string) {
	banner.PrintSimple("AlphaStocks Worker", version)
}
