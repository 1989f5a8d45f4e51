package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/syc/internal/errors"
	"github.com/PolarWolf314/syc/internal/ui"
	"github.com/briandowns/spinner"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// IMPORTANT: spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// automatically calls ui.EnsureNewline() on the final message before printing it.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		// If we can't set spinner color, just continue without it.
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	if !verbose && !debug {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if !verbose && !debug {
			log.SetOutput(os.Stderr)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		if !verbose && !debug {
			s.Stop()
		}

		// Print final message to stdout (for tests to capture).
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// fail shows err on the spinner and returns it marked as reported.
func fail(s *spinner.Spinner, err error) error {
	Logger.Errorf("%v", err)
	s.FinalMSG = formatError(err)
	return reportedError{err}
}

func success(message string) string {
	return ui.Success.Sprint("✓") + " " + message
}

// formatError formats an error for display with a hint where one helps.
func formatError(err error) string {
	cross := ui.Error.Sprint("✗") + " "
	arrow := "\n" + ui.Info.Sprint("→") + " "

	switch {
	case errors.Is(err, kerrors.ErrKeyExists):
		return cross + err.Error() + arrow + "Pass " + ui.Code.Sprint("--overwrite") + " to replace it"

	case errors.Is(err, kerrors.ErrBundleExists):
		return cross + err.Error() + arrow + "Pass " + ui.Code.Sprint("--overwrite") + " to republish it"

	case errors.Is(err, kerrors.ErrKeyNotFound):
		return cross + err.Error() + arrow + "Run " + ui.Code.Sprint("syc key generate") +
			" for a local identity or " + ui.Code.Sprint("syc key import") + " for a peer"

	case errors.Is(err, kerrors.ErrTrustConflict):
		return cross + err.Error() + arrow + "Verify the new key with its owner, then re-import with " +
			ui.Code.Sprint("--override")

	case errors.Is(err, kerrors.ErrNotRecipient):
		return cross + err.Error() + arrow + "Ask a current recipient to run " + ui.Code.Sprint("syc file reshare")

	case errors.Is(err, kerrors.ErrDecryption):
		return cross + "The envelope failed authentication and may have been tampered with"

	case errors.Is(err, kerrors.ErrEnvelopeFormat),
		errors.Is(err, kerrors.ErrConfig),
		errors.Is(err, kerrors.ErrKey),
		errors.Is(err, kerrors.ErrFileNotFound),
		errors.Is(err, kerrors.ErrAccessDenied):
		return cross + err.Error()

	default:
		return cross + "Unexpected error: " + err.Error()
	}
}
