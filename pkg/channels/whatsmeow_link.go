package channels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mdp/qrterminal/v3"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "modernc.org/sqlite"

	"github.com/sipeed/driveclaw/pkg/config"
)

// LinkWhatsApp initiates WhatsApp QR pairing. mode is "terminal" (render
// the QR in the terminal) or "png" (write it next to the device store).
func LinkWhatsApp(dbPath string, mode string) error {
	dbPath = config.ExpandHome(dbPath)
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite",
		fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath), waLog.Noop)
	if err != nil {
		return fmt.Errorf("failed to open whatsmeow db: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device store: %w", err)
	}

	if deviceStore.ID != nil {
		fmt.Printf("Device already linked: %s\n", deviceStore.ID.String())
		fmt.Println("To re-link, delete the database first:")
		fmt.Printf("  rm %s\n", dbPath)
		return nil
	}

	client := whatsmeow.NewClient(deviceStore, waLog.Noop)

	connected := make(chan struct{}, 1)
	client.AddEventHandler(func(evt interface{}) {
		if _, ok := evt.(*events.Connected); ok {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})

	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			if mode == "png" {
				pngPath := filepath.Join(filepath.Dir(dbPath), "whatsapp-qr.png")
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 256, pngPath); err != nil {
					return fmt.Errorf("failed to write QR PNG: %w", err)
				}
				fmt.Printf("QR code saved to: %s\n", pngPath)
			} else {
				qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, os.Stdout)
			}
			fmt.Println("Scan the QR code with WhatsApp to link this device.")
		case "success":
			fmt.Println("Linked successfully.")
			<-connected
			client.Disconnect()
			return nil
		default:
			fmt.Printf("Pairing event: %s\n", evt.Event)
		}
	}

	return fmt.Errorf("pairing did not complete")
}

// WhatsAppStatus reports whether a device is linked in the local store.
func WhatsAppStatus(dbPath string) error {
	dbPath = config.ExpandHome(dbPath)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No WhatsApp database found.")
		fmt.Println("Run 'driveclaw whatsapp link' to link a device.")
		return nil
	}

	ctx := context.Background()
	container, err := sqlstore.New(ctx, "sqlite",
		fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath), waLog.Noop)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	if deviceStore.ID == nil {
		fmt.Println("No linked device found.")
		fmt.Println("Run 'driveclaw whatsapp link' to link a device.")
	} else {
		fmt.Printf("Linked device: %s\n", deviceStore.ID.String())
	}

	return nil
}
