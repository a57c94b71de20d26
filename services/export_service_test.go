package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMonthlyReportGolden(t *testing.T) {
	e := newEnv(t)
	seedMonth(t, e)
	ctx := context.Background()

	approvedInvite(t, e, "alice", e.student(t, "carol"))
	_, err := e.invites.RecordPayment(ctx, "admin", "alice", "2024-05", mustDecimal("0.5"))
	require.NoError(t, err)

	exporter := NewExportService(e.stats, e.invites, nil, zap.NewNop())
	rows, err := exporter.MonthlyReport(ctx, "2024-05")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, rows))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "monthly_report_2024-05", buf.Bytes())
}

func TestExportUploadsCSV(t *testing.T) {
	e := newEnv(t)
	seedMonth(t, e)
	uploader := &fakeUploader{}

	exporter := NewExportService(e.stats, e.invites, uploader, zap.NewNop())
	url, err := exporter.Export(context.Background(), "2024-05")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/exports/2024-05.csv", url)
	assert.Equal(t, "exports/2024-05.csv", uploader.key)
	assert.Contains(t, string(uploader.body), "alice,alice_name,2,2,250000,40.00")

	_, err = NewExportService(e.stats, e.invites, nil, zap.NewNop()).Export(context.Background(), "2024-05")
	assert.ErrorIs(t, err, ErrConflict)
}
