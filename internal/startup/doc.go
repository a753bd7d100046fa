// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [ReadConfig] loads an optional .env file (ENV_FILE, default ".env") with
// godotenv, reads the environment, and overlays the YAML file named by
// SETTINGS_FILE onto the conversion settings. [LoadConfig] does the same and
// prints the banner and a configuration dump first. Supported variables:
//
//   - MEDIA_DIR: Media library root (default: /media)
//   - DATABASE_DIR: Database directory, must be writable (default: /database)
//   - LOG_DIR: Directory of the conversion audit log (default: /logs)
//   - UPLOAD_DIR: Directory watched for uploads; empty disables the watcher
//   - PORT, METRICS_PORT, METRICS_ENABLED: HTTP listeners
//   - MAX_DIMENSION, QUALITY, DELETE_ORIGINALS, ENABLE_LOGGING, FILE_PREFIX:
//     conversion settings (defaults 1200, 85, true, true, wpcm_)
//   - CODEC: vips or native (default: vips)
//   - COUNTER_BACKEND: sqlite, redis or memory; REDIS_ADDR and REDIS_KEY
//     configure the redis backend
//   - NATS_URL, EVENT_SUBJECT: conversion event publishing
//   - SWEEP_SCHEDULE: cron expression for full sweeps; SWEEP_RATE throttles
//     them in items per second
//   - ADMIN_TOKEN_HASH: bcrypt hash guarding the admin API
//   - LOG_LEVEL, LOG_HEALTH_CHECKS: logging
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
