package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/gustycube/conjunctions/internal/imager"
	"github.com/gustycube/conjunctions/internal/types"
)

func TestSelectImagers(t *testing.T) {
	epoch := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	c := imager.NewCatalog([]imager.Location{
		{Code: "GAKO", Array: "THEMIS", Site: types.Geodetic{Lat: 62.41, Lon: -145.16}, ValidTo: epoch},
		{Code: "FSMI", Array: "THEMIS", Site: types.Geodetic{Lat: 60.03, Lon: -111.93}},
		{Code: "GAKO", Array: "THEMIS", Site: types.Geodetic{Lat: 62.40, Lon: -145.15}, ValidFrom: epoch},
		{Code: "RANK", Array: "REGO", Site: types.Geodetic{Lat: 62.82, Lon: -92.11}},
	}, 20)

	tests := []struct {
		name   string
		wanted []string
		want   []string
	}{
		{"whole array", nil, []string{"gako", "fsmi"}},
		{"restricted", []string{"GAKO"}, []string{"gako"}},
		{"other array code ignored", []string{"rank"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectImagers(c, "themis", tt.wanted)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("selectImagers = %v, want %v", got, tt.want)
			}
		})
	}
}
