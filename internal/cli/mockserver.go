package cli

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/shortload/internal/mockserver"
)

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Serve an in-memory URL shortener to test against",
	Long: `Serve the shortener API in memory:

  POST /api/v1/urls/        create a short URL
  GET  /{id}                redirect to the original URL
  GET  /api/v1/urls/{id}    read click statistics

Example:
  shortload mock-server --addr :8080 --redirect-delay 20ms`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		delay, _ := cmd.Flags().GetDuration("redirect-delay")
		permanent, _ := cmd.Flags().GetBool("permanent")

		opts := mockserver.Options{RedirectDelay: delay}
		if permanent {
			opts.RedirectStatus = http.StatusMovedPermanently
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return mockserver.ListenAndServe(ctx, addr, mockserver.NewStore(), opts)
	},
}

func init() {
	mockServerCmd.Flags().String("addr", ":8080", "Listen address")
	mockServerCmd.Flags().Duration("redirect-delay", 0, "Artificial latency added to every redirect")
	mockServerCmd.Flags().Bool("permanent", false, "Answer redirects with 301 instead of 302")
}
