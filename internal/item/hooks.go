package handler

import (
	"net/http"

	"itemstore/internal/item/model"
	"itemstore/pkg/logger"

	"go.uber.org/zap"
)

// LogDispatch writes one structured line per routed request.
func LogDispatch(d model.Dispatch) {
	fields := []zap.Field{
		zap.String("op", d.Op),
		zap.String("method", d.Method),
		zap.String("path", d.Path),
		zap.Int("status", d.Status),
		zap.Duration("duration", d.Duration),
	}
	if d.ItemID != 0 {
		fields = append(fields, zap.Int64("item_id", d.ItemID))
	}

	switch {
	case d.Status >= http.StatusInternalServerError:
		logger.Log.Error("item request failed", append(fields, zap.Error(d.Err))...)
	case d.Err != nil:
		logger.Log.Info(d.Method+" request rejected", append(fields, zap.String("reason", d.Err.Error()))...)
	default:
		logger.Log.Info(d.Method+" request received", fields...)
	}
}
