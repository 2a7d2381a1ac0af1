package infra

import (
	"fmt"
	"strings"
)

// ANSI Color Codes
const (
	ColorReset  = "\033[0m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner displays the startup banner with the storage mode.
func PrintBanner(cfg *Config) {
	color := ColorYellow
	storageDesc := "LOCAL ONLY"
	if cfg.RemoteEnabled() {
		color = ColorCyan
		storageDesc = "REMOTE (ENCRYPTED) + LOCAL"
	}

	symbols := strings.Join(cfg.Market.Symbols, ", ")

	fmt.Println()
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#                🦊 Coinfox Price Pipeline                #%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#   SYMBOLS: %-36s #%s\n", color, symbols, ColorReset)
	fmt.Printf("%s#   STORAGE: %-36s #%s\n", color, storageDesc, ColorReset)
	fmt.Printf("%s#   VERSION: %-36s #%s\n", color, cfg.App.Version, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Println()
}
