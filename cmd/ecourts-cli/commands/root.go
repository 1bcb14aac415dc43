package commands

import (
	"context"
	"fmt"
	"os"

	"ecourts-backend/lib/scrapers/ecourts"
	"ecourts-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var portalUrl *string

var rootCmd = &cobra.Command{
	Use:   "ecourts-cli",
	Short: "ecourts-cli browses the court hierarchy and fetches cause lists from an eCourts portal.",
}

func init() {
	portalUrl = rootCmd.PersistentFlags().String(
		"portal", "https://districts.ecourts.gov.in", "The portal deployment to talk to.")
}

func newClient() *ecourts.Client {
	client, err := ecourts.NewClient(ecourts.ClientOptions{BaseUrl: *portalUrl})
	if err != nil {
		serviceutil.Fatal("failed to create client", err)
	}
	return client
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
