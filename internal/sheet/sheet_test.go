package sheet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephyslab/sortpipe/internal/config"
)

const sampleCSV = `trial_name,path,probe_type,num_channels,Include,Areas
240315_r1503_open-field_1,r1503/240315,NP2_openephys,384,Y,
240315_r1503_sleep,r1503/240315,NP2_openephys,384,Y,
240503_r1537_sleep,r1537/240503,5x12_buz,64,Y,RS-CA1
240503_r1537_open-field_ml,r1537/240503,5x12_buz,64,N,RS-CA1
`

func TestLoad(t *testing.T) {
	s, err := Load(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, s.Records, 4)

	first := s.Records[0]
	assert.Equal(t, "240315_r1503_open-field_1", first.TrialName)
	assert.Equal(t, "r1503/240315", first.RelPath)
	assert.Equal(t, config.ProbeNP2, first.ProbeType)
	assert.Equal(t, 384, first.NumChannels)
	assert.True(t, first.Include)
	assert.Empty(t, first.Area)

	axona := s.Records[2]
	assert.Equal(t, config.ProbeAxona, axona.ProbeType)
	assert.Equal(t, "RS-CA1", axona.Area)

	assert.False(t, s.Records[3].Include, "Include other than Y must exclude")
	assert.True(t, s.AreaTagged)
}

func TestLoad_PreservesRowOrder(t *testing.T) {
	s, err := Load(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	names := make([]string, len(s.Records))
	for i, r := range s.Records {
		names[i] = r.TrialName
	}
	assert.Equal(t, []string{
		"240315_r1503_open-field_1",
		"240315_r1503_sleep",
		"240503_r1537_sleep",
		"240503_r1537_open-field_ml",
	}, names)
}

func TestLoad_MissingRequiredColumn(t *testing.T) {
	csv := "trial_name,path,num_channels,Include\nx,y,64,Y\n"
	_, err := Load(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe_type")
}

func TestLoad_DuplicateTrialName(t *testing.T) {
	csv := `trial_name,path,probe_type,num_channels,Include
240315_r1503_a,p,NP2_openephys,384,Y
240315_r1503_a,p,NP2_openephys,384,Y
`
	_, err := Load(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate trial name")
}

func TestLoad_InvalidChannelCount(t *testing.T) {
	for _, bad := range []string{"", "0", "-4", "many"} {
		csv := "trial_name,path,probe_type,num_channels,Include\nt1,p,NP2_openephys," + bad + ",Y\n"
		_, err := Load(strings.NewReader(csv))
		assert.Error(t, err, "channel count %q", bad)
	}
}

func TestLoad_SkipsBlankRows(t *testing.T) {
	csv := "trial_name,path,probe_type,num_channels,Include\nt1,p,NP2_openephys,384,Y\n,,,,\n"
	s, err := Load(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, s.Records, 1)
}

func TestLoad_NoAreaColumn(t *testing.T) {
	csv := "trial_name,path,probe_type,num_channels,Include\nt1,p,NP2_openephys,384,Y\n"
	s, err := Load(strings.NewReader(csv))
	require.NoError(t, err)
	assert.False(t, s.AreaTagged)
}

func TestResolveKeyMode(t *testing.T) {
	tests := []struct {
		name       string
		areaTagged bool
		mode       config.KeyMode
		want       config.KeyMode
	}{
		{"auto without tags", false, config.KeyAuto, config.KeyAnimalDate},
		{"auto with tags", true, config.KeyAuto, config.KeyAnimalDateArea},
		{"forced plain wins over tags", true, config.KeyAnimalDate, config.KeyAnimalDate},
		{"forced area wins without tags", false, config.KeyAnimalDateArea, config.KeyAnimalDateArea},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Sheet{AreaTagged: tt.areaTagged}
			assert.Equal(t, tt.want, s.ResolveKeyMode(tt.mode))
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	s, err := Fetch(context.Background(), NewHTTPFetcher(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, s.Records, 4)
}

func TestHTTPFetcher_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), NewHTTPFetcher(), srv.URL)
	require.ErrorIs(t, err, ErrSourceUnavailable)

	srv.Close()
	_, err = Fetch(context.Background(), NewHTTPFetcher(), srv.URL)
	require.ErrorIs(t, err, ErrSourceUnavailable, "transport error maps to the same sentinel")
}

func TestBasePath(t *testing.T) {
	r := TrialRecord{RelPath: "r1503/240315"}
	assert.Equal(t, "/data/recordings/r1503/240315", r.BasePath("/data/recordings"))
}
