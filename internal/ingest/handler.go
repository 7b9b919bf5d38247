package ingest

import (
	"io"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/siss-hmue/labflow/internal/domain/recommendation"
	"github.com/siss-hmue/labflow/internal/platform/db"
)

// Handler exposes the bulk upload endpoints. It owns the transaction
// boundary: one transaction per uploaded file, with the classification
// subprocess call inside it, and recommendation generation strictly after
// commit.
type Handler struct {
	pool      *pgxpool.Pool
	proc      *Processor
	enroller  *Enroller
	generator *recommendation.Generator
	uploadDir string
	log       zerolog.Logger
}

func NewHandler(pool *pgxpool.Pool, proc *Processor, enroller *Enroller, gen *recommendation.Generator, uploadDir string, log zerolog.Logger) *Handler {
	return &Handler{pool: pool, proc: proc, enroller: enroller, generator: gen, uploadDir: uploadDir, log: log}
}

func (h *Handler) RegisterRoutes(admin *echo.Group) {
	admin.POST("/lab-results", h.UploadLabResults)
	admin.POST("/patients", h.UploadPatients)
}

// UploadLabResults runs the full pipeline over one CSV file. If the
// classification engine fails for any instance, the whole file rolls back.
func (h *Handler) UploadLabResults(c echo.Context) error {
	rows, err := h.receiveRows(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("beginning ingestion transaction")
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing lab results")
	}
	defer tx.Rollback(ctx)

	txCtx := db.WithTx(ctx, tx)
	summary, err := h.proc.Process(txCtx, rows)
	if err != nil {
		h.log.Error().Err(err).Msg("lab results batch failed, rolling back")
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing lab results")
	}

	if err := tx.Commit(ctx); err != nil {
		h.log.Error().Err(err).Msg("committing ingestion transaction")
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing lab results")
	}

	// Post-commit: one recommendation per completed instance, failures
	// logged per instance and invisible to the caller.
	generated := h.generator.GenerateForInstances(ctx, summary.Completed)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":         "lab results uploaded and processed successfully",
		"processed":       summary.Processed,
		"skipped":         summary.Skipped,
		"completed":       len(summary.Completed),
		"recommendations": generated,
	})
}

// UploadPatients enrolls patients and opens pending test instances from one
// CSV file, atomically.
func (h *Handler) UploadPatients(c echo.Context) error {
	rows, err := h.receiveRows(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("beginning enrollment transaction")
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing enrollment file")
	}
	defer tx.Rollback(ctx)

	summary, err := h.enroller.Process(db.WithTx(ctx, tx), rows)
	if err != nil {
		h.log.Error().Err(err).Msg("enrollment batch failed, rolling back")
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing enrollment file")
	}

	if err := tx.Commit(ctx); err != nil {
		h.log.Error().Err(err).Msg("committing enrollment transaction")
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing enrollment file")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":           "enrollment file processed successfully",
		"patients_created":  summary.PatientsCreated,
		"instances_created": summary.InstancesCreated,
		"skipped":           summary.Skipped,
	})
}

// receiveRows spools the multipart file to the upload directory, parses it
// and removes the temp file regardless of outcome.
func (h *Handler) receiveRows(c echo.Context) ([]Row, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "csv file is required")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer src.Close()

	tmp, err := os.CreateTemp(h.uploadDir, "upload-*.csv")
	if err != nil {
		h.log.Error().Err(err).Msg("creating temp upload file")
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "error storing uploaded file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		h.log.Error().Err(err).Msg("spooling upload")
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "error storing uploaded file")
	}
	if err := tmp.Close(); err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "error storing uploaded file")
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "error reading uploaded file")
	}
	defer f.Close()

	rows, err := Parse(f)
	if err != nil {
		h.log.Warn().Err(err).Str("file", fileHeader.Filename).Msg("rejecting malformed upload")
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed csv file")
	}
	return rows, nil
}
