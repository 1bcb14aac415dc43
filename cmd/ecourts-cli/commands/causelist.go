package commands

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"ecourts-backend/lib/scrapers/ecourts"
	"ecourts-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var causeListDate *string
var causeListCriminal *bool
var causeListPdf *string

func init() {
	causeListDate = causeListCmd.Flags().String("date", "", "The list date (dd-mm-yyyy). Required.")
	causeListCriminal = causeListCmd.Flags().Bool("criminal", false, "Fetch the criminal list instead of the civil one.")
	causeListPdf = causeListCmd.Flags().String("pdf", "", "Also download the portal's pdf rendition to this path.")
	causeListCmd.MarkFlagRequired("date")
	rootCmd.AddCommand(causeListCmd)
}

// writes the captcha image to a temp file and reads the solution off
// stdin; the portal wants a human for this part
func solveCaptcha(challenge *ecourts.CaptchaChallenge) string {
	encoded := strings.TrimPrefix(challenge.Image, "data:image/png;base64,")
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		serviceutil.Fatal("failed to decode captcha image", err)
	}

	f, err := os.CreateTemp("", "ecourts-captcha-*.png")
	if err != nil {
		serviceutil.Fatal("failed to write captcha image", err)
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		serviceutil.Fatal("failed to write captcha image", err)
	}

	fmt.Printf("captcha image written to %s\n", f.Name())
	if challenge.AudioURL != "" {
		fmt.Printf("audio alternative: %s\n", challenge.AudioURL)
	}
	fmt.Print("captcha solution: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		serviceutil.Fatal("failed to read solution", err)
	}
	return strings.TrimSpace(line)
}

var causeListCmd = &cobra.Command{
	Use:   "causelist <state_code> <district_code> <complex_code> <court_code> --date <dd-mm-yyyy>",
	Short: "Fetches the cause list of one court for one day.",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client := newClient()

		session, err := client.OpenSession(ctx)
		if err != nil {
			serviceutil.Fatal("failed to open portal session", err)
		}
		defer session.Close()

		challenge, err := client.IssueCaptcha(ctx, session)
		if err != nil {
			serviceutil.Fatal("failed to fetch captcha", err)
		}

		causeType := ecourts.CauseTypeCivil
		if *causeListCriminal {
			causeType = ecourts.CauseTypeCriminal
		}

		result, err := client.FetchCauseList(ctx, session, ecourts.CauseListRequest{
			StateCode:    args[0],
			DistrictCode: args[1],
			ComplexCode:  args[2],
			CourtCode:    args[3],
			Date:         *causeListDate,
			CauseType:    causeType,
			Challenge:    challenge,
			Solution:     solveCaptcha(challenge),
		})
		if err != nil {
			serviceutil.Fatal("failed to fetch cause list", err)
		}
		if len(result.PortalErrors) > 0 {
			for _, msg := range result.PortalErrors {
				fmt.Fprintln(os.Stderr, "portal:", msg)
			}
			os.Exit(1)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Sr", "Case", "Parties", "Advocate", "Purpose"})
		for _, entry := range result.Entries {
			t.AppendRow(table.Row{
				entry.SerialNumber, entry.CaseNumber, entry.Parties,
				entry.Advocate, entry.Purpose,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		fmt.Printf("%d cases\n", result.TotalCases)

		if *causeListPdf != "" {
			body, err := client.DownloadCauseListPDF(ctx, ecourts.CauseListPDFRequest{
				StateCode:    args[0],
				DistrictCode: args[1],
				ComplexCode:  args[2],
				CourtCode:    args[3],
				Date:         *causeListDate,
			})
			if err != nil {
				serviceutil.Fatal("failed to download pdf", err)
			}
			if err := os.WriteFile(*causeListPdf, body, 0644); err != nil {
				serviceutil.Fatal("failed to write pdf", err)
			}
			fmt.Printf("pdf written to %s\n", *causeListPdf)
		}
	},
}
