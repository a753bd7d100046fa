package main

import (
	"context"
	"fmt"
	"io"

	"media-converter/internal/auditlog"
	"media-converter/internal/batch"
	"media-converter/internal/convert"
	"media-converter/internal/database"
	"media-converter/internal/media"
	"media-converter/internal/naming"
	"media-converter/internal/startup"
)

// app holds everything a command needs. Commands never start servers.
type app struct {
	config   *startup.Config
	db       *database.Database
	audit    *auditlog.Log
	counter  naming.CounterStore
	pipeline *convert.Pipeline
	driver   *batch.Driver
	closers  []io.Closer
}

// appLoader builds an app; tests substitute their own.
type appLoader func(ctx context.Context) (*app, error)

func openApp(ctx context.Context) (*app, error) {
	config, err := startup.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return buildApp(ctx, config)
}

func buildApp(ctx context.Context, config *startup.Config) (*app, error) {
	a := &app{config: config}

	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w (DATABASE_DIR=%s)", err, config.DatabaseDir)
	}
	a.db = db
	a.closers = append(a.closers, db)

	audit, err := auditlog.Open(config.AuditLogPath, config.Settings.EnableLogging)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.audit = audit
	a.closers = append(a.closers, audit)

	counter, closer, err := startup.OpenCounter(config, db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.counter = counter
	a.closers = append(a.closers, closer)

	codec, err := media.NewCodec(config.Codec)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := media.CheckCapabilities(codec); err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline, err = convert.New(convert.Options{
		Settings:       config.Settings,
		Codec:          codec,
		Counter:        counter,
		CounterBackend: config.CounterBackend,
		Audit:          audit,
		Attachments:    db,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.driver, err = batch.New(batch.Options{Store: db, Converter: a.pipeline})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}
