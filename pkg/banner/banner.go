package banner

import (
	"fmt"

	"m5chat/pkg/config"
)

const banner = `
███╗   ███╗███████╗ ██████╗██╗  ██╗ █████╗ ████████╗
████╗ ████║██╔════╝██╔════╝██║  ██║██╔══██╗╚══██╔══╝
██╔████╔██║███████╗██║     ███████║███████║   ██║
██║╚██╔╝██║╚════██║██║     ██╔══██║██╔══██║   ██║
██║ ╚═╝ ██║███████║╚██████╗██║  ██║██║  ██║   ██║
╚═╝     ╚═╝╚══════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// Print writes the startup banner with the resolved runtime settings.
func Print(cfg *config.Config, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:      %s\n", cfg.Addr())
	fmt.Printf("DB Path:     %s\n", cfg.DBPath())
	fmt.Printf("Uploads:     %s (max %d bytes)\n", cfg.UploadDir(), cfg.MaxUploadBytes())
	fmt.Printf("Message TTL: %s\n", cfg.TTL())
	if cfg.Chat.SweepCron != "" {
		fmt.Printf("Sweep:       cron %s\n", cfg.Chat.SweepCron)
	} else {
		fmt.Printf("Sweep:       every %s\n", cfg.SweepInterval())
	}
	if version != "" {
		fmt.Printf("Version:     %s\n", version)
	}
	if cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
		fmt.Println("TLS:         configured")
	} else {
		fmt.Println("TLS:         unconfigured")
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("WS   /ws                          - join rooms and chat")
	fmt.Println("GET  /v1/rooms                    - rooms with live messages")
	fmt.Println("POST /v1/rooms                    - create a room")
	fmt.Println("GET  /v1/rooms/{room}/messages    - live history for a room")
	fmt.Println("POST /v1/rooms/{room}/uploads     - attach an image or voice file")
	fmt.Println("GET  /uploads/{name}              - fetch an attachment")

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl 'http://localhost%s/v1/rooms'\n", cfg.Addr())
	fmt.Printf("curl -X POST 'http://localhost%s/v1/rooms' -d '{\"room\":\"lobby\"}'\n", cfg.Addr())

	fmt.Println("\n== Logs: =================================================")
}
