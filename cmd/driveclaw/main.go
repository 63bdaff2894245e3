// DriveClaw - WhatsApp Google Drive assistant
// License: MIT

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sipeed/driveclaw/pkg/config"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
)

const logo = "🗂️"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s driveclaw %s\n", logo, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	fmt.Printf("  Go: %s\n", runtime.Version())
}

func printHelp() {
	fmt.Printf("%s driveclaw - WhatsApp/Telegram Google Drive assistant\n\n", logo)
	fmt.Println("Usage: driveclaw <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  gateway              Run the assistant gateway")
	fmt.Println("  whatsapp link        Pair a WhatsApp device (QR code)")
	fmt.Println("  status               Show config, credential and channel status")
	fmt.Println("  backup               Back up or restore driveclaw data")
	fmt.Println("  version              Print version information")
	fmt.Println("  help                 Show this help")
	fmt.Println()
	fmt.Printf("Config file: %s (overridable with DRIVECLAW_* env vars)\n", config.ConfigPath())
}

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "gateway":
		gatewayCmd()
	case "whatsapp":
		whatsappCmd()
	case "status":
		statusCmd()
	case "backup":
		backupCmd()
	case "version", "--version", "-v":
		printVersion()
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}
