package logger

import "go.uber.org/zap"

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path crea un campo para el path del request.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field { return zap.Int("status", v) }

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

// Bytes crea un campo para los bytes escritos en la respuesta.
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - DOMINIO SYNC
// =================================================================================

// UserID crea un campo para el ID del usuario.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Provider crea un campo para el provider externo (DropBox, GitHub, ...).
func Provider(v string) zap.Field { return zap.String("provider", v) }

// SyncID crea un campo para el ID del attachment de sync.
func SyncID(v string) zap.Field { return zap.String("sync_id", v) }

// Email crea un campo para el email (usar con cuidado en prod).
func Email(v string) zap.Field { return zap.String("email", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field { return zap.String("component", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// String crea un campo string genérico.
func String(k, v string) zap.Field { return zap.String(k, v) }

// Any crea un campo genérico.
func Any(k string, v any) zap.Field { return zap.Any(k, v) }
