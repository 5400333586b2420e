package migrations

// InitialSchema creates the denormalized measurement schema. The two
// measurement views carry the same readings under different partition
// keys: by (sensor_id, yyyymm) for per-sensor range queries, by
// (country, city, yyyymmdd) for per-city rollups. Those keys must not
// change - the range stitcher and the rollup engine depend on them.
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		-- Enable TimescaleDB extension
		CREATE EXTENSION IF NOT EXISTS timescaledb;

		-- Sensor metadata
		CREATE TABLE IF NOT EXISTS sensors (
			sensor_id TEXT PRIMARY KEY,
			name TEXT,
			type TEXT,
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION,
			city TEXT,
			country TEXT,
			status TEXT,
			started_at TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_sensors_city ON sensors (country, city);

		-- By-sensor-by-month measurement view
		CREATE TABLE IF NOT EXISTS measurements_by_sensor_month (
			sensor_id TEXT NOT NULL,
			yyyymm INTEGER NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			PRIMARY KEY (sensor_id, yyyymm, ts)
		);

		SELECT create_hypertable('measurements_by_sensor_month', 'ts');

		CREATE INDEX IF NOT EXISTS idx_msm_sensor_ts
			ON measurements_by_sensor_month (sensor_id, yyyymm DESC, ts DESC);

		-- By-city-by-day measurement view
		CREATE TABLE IF NOT EXISTS measurements_by_city_day (
			country TEXT NOT NULL,
			city TEXT NOT NULL,
			yyyymmdd INTEGER NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			sensor_id TEXT NOT NULL,
			temperature DOUBLE PRECISION,
			humidity DOUBLE PRECISION,
			PRIMARY KEY (country, city, yyyymmdd, ts, sensor_id)
		);

		SELECT create_hypertable('measurements_by_city_day', 'ts');

		CREATE INDEX IF NOT EXISTS idx_mcd_city_day
			ON measurements_by_city_day (country, city, yyyymmdd, ts, sensor_id);

		-- Daily per-city rollups
		CREATE TABLE IF NOT EXISTS daily_city_stats (
			country TEXT NOT NULL,
			city TEXT NOT NULL,
			yyyymmdd INTEGER NOT NULL,
			temp_min DOUBLE PRECISION,
			temp_max DOUBLE PRECISION,
			temp_avg DOUBLE PRECISION,
			hum_min DOUBLE PRECISION,
			hum_max DOUBLE PRECISION,
			hum_avg DOUBLE PRECISION,
			samples INTEGER NOT NULL,
			PRIMARY KEY (country, city, yyyymmdd)
		);

		-- Sensor health-check observations
		CREATE TABLE IF NOT EXISTS sensor_health (
			sensor_id TEXT NOT NULL,
			checked_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			notes TEXT,
			PRIMARY KEY (sensor_id, checked_at)
		);

		-- Alert records (append-only)
		CREATE TABLE IF NOT EXISTS alerts (
			alert_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			subtype TEXT,
			sensor_id TEXT NOT NULL,
			country TEXT,
			city TEXT,
			value DOUBLE PRECISION,
			threshold_min DOUBLE PRECISION,
			threshold_max DOUBLE PRECISION,
			description TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_sensor ON alerts (sensor_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts (status, created_at DESC);

		-- Report request tracking
		CREATE TABLE IF NOT EXISTS requests (
			request_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			process_id TEXT NOT NULL,
			params JSONB NOT NULL,
			status TEXT NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_requests_user ON requests (user_id, status, requested_at DESC);

		CREATE TABLE IF NOT EXISTS executions (
			execution_id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL REFERENCES requests (request_id),
			ok BOOLEAN NOT NULL,
			result_location TEXT,
			metered_units INTEGER NOT NULL DEFAULT 0,
			notes TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_executions_request ON executions (request_id);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS executions;
		DROP TABLE IF EXISTS requests;
		DROP TABLE IF EXISTS alerts;
		DROP TABLE IF EXISTS sensor_health;
		DROP TABLE IF EXISTS daily_city_stats;
		DROP TABLE IF EXISTS measurements_by_city_day;
		DROP TABLE IF EXISTS measurements_by_sensor_month;
		DROP TABLE IF EXISTS sensors;
	`,
}
