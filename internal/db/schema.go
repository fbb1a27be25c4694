package db

const schema = `
CREATE TABLE IF NOT EXISTS calibration_runs (
    id                    UUID PRIMARY KEY,
    prior_low             DOUBLE PRECISION NOT NULL,
    prior_high            DOUBLE PRECISION NOT NULL,
    observed_mean         DOUBLE PRECISION NOT NULL,
    observed_stdev        DOUBLE PRECISION NOT NULL,
    num_samples           INTEGER NOT NULL,
    pop_size              INTEGER NOT NULL,
    time_steps            INTEGER NOT NULL,
    seed                  BIGINT NOT NULL,
    effective_sample_size DOUBLE PRECISION NOT NULL,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS calibration_samples (
    run_id    UUID NOT NULL REFERENCES calibration_runs(id) ON DELETE CASCADE,
    cohort_id INTEGER NOT NULL,
    weight    DOUBLE PRECISION NOT NULL,
    parameter DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (run_id, cohort_id)
);
`
