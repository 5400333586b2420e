package migrations

// RetentionPolicies bounds raw-measurement growth. Daily rollups keep
// the aggregate history, so raw readings only need to outlive the
// longest report window by a comfortable margin.
var RetentionPolicies = &Migration{
	ID:   "002_retention_policies",
	Name: "002_retention_policies",
	UpSQL: `
	-- Keep raw readings for 13 months so a full-year range query
	-- still resolves against both views
	SELECT add_retention_policy('measurements_by_sensor_month', INTERVAL '13 months');
	SELECT add_retention_policy('measurements_by_city_day', INTERVAL '13 months');

	-- Continuous aggregate of per-city reading volume, used to watch
	-- ingestion health without scanning raw partitions
	CREATE MATERIALIZED VIEW IF NOT EXISTS city_reading_volume_daily
	WITH (timescaledb.continuous) AS
	SELECT
		time_bucket('1 day', ts) AS day,
		country,
		city,
		COUNT(*) AS reading_count,
		COUNT(temperature) AS temp_samples,
		COUNT(humidity) AS hum_samples
	FROM measurements_by_city_day
	GROUP BY day, country, city
	WITH NO DATA;
	`,
	DownSQL: `
	DROP MATERIALIZED VIEW IF EXISTS city_reading_volume_daily;
	SELECT remove_retention_policy('measurements_by_sensor_month');
	SELECT remove_retention_policy('measurements_by_city_day');
	`,
}
