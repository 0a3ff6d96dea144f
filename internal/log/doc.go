// Package log provides secure logging built on the standard slog package.
//
// SecureHandler wraps any slog handler and sanitizes records before they
// are written:
//   - credentials (cookies, authorization headers, tokens) are replaced by
//     MaskValue, by key name or by value pattern
//   - phone numbers are masked to their last four digits, both under the
//     phone, number and target keys and wherever a value looks like a full
//     international number
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Info("searching", "target", "5511987654321") // target=*********4321
//
// The logger can be passed to tornago and to every phoneprobe component
// that accepts a *slog.Logger.
package log
