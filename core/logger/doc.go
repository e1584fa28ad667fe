// Package logger builds slog loggers and provides attribute helpers with
// consistent keys across the faucet.
//
//	log := logger.New(
//		logger.WithProduction("faucet"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//	log.Info("disbursement finalized",
//		logger.TaskID(id.String()),
//		logger.TxHash(receipt.TxHash),
//		logger.Duration(time.Since(start)),
//	)
//
// WithDevelopment selects text output at debug level, WithStaging and
// WithProduction select JSON at info level. Context extractors
// (WithContextValue, WithContextExtractors) add attributes to records logged
// with the *Context methods.
//
// Helpers that take a string or error return an empty slog.Attr for empty
// input, which slog drops, so optional values can be logged unconditionally:
//
//	log.Error("disbursement failed", logger.TxHash(hash), logger.Error(err))
//
// Components of the faucet accept a *slog.Logger through options and default
// to Discard.
package logger
