package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReleaseDetail_DerivedStatus(t *testing.T) {
	booked := ReleaseDetailDate{Date: "2025-06-11", IsBooked: true}
	free := ReleaseDetailDate{Date: "2025-06-12"}

	cases := []struct {
		name   string
		detail ReleaseDetail
		want   string
	}{
		{"no dates booked", ReleaseDetail{Status: ReleaseStatusActive, Dates: []ReleaseDetailDate{free, free}}, ReleaseStatusActive},
		{"some dates booked", ReleaseDetail{Status: ReleaseStatusActive, Dates: []ReleaseDetailDate{booked, free}}, ReleaseStatusPartiallyBooked},
		{"all dates booked", ReleaseDetail{Status: ReleaseStatusPartiallyBooked, Dates: []ReleaseDetailDate{booked, booked}}, ReleaseStatusFullyBooked},
		{"cancelled is terminal", ReleaseDetail{Status: ReleaseStatusCancelled, Dates: []ReleaseDetailDate{booked}}, ReleaseStatusCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.detail.DerivedStatus())
		})
	}
}
