package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
	if !strings.HasPrefix(info.String(), "stickermirror "+info.Version) {
		t.Errorf("String() = %q", info.String())
	}
	if !strings.Contains(Full(), runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() = %q, want platform", Full())
	}
}

func TestFillFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	tests := []struct {
		name string
		in   Info
		want Info
	}{
		{
			name: "unset fields come from build info",
			in:   Info{Version: "dev", Commit: "unknown", Date: "unknown"},
			want: Info{Version: "v1.4.0", Commit: "0123456789ab", Date: "2026-10-01T12:00:00Z", Modified: true},
		},
		{
			name: "ldflags win",
			in:   Info{Version: "2.0.0", Commit: "cafe", Date: "today"},
			want: Info{Version: "2.0.0", Commit: "cafe", Date: "today", Modified: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			fillFromBuildInfo(&got, bi)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFillFromBuildInfo_DevelKeepsDev(t *testing.T) {
	info := Info{Version: "dev", Commit: "unknown", Date: "unknown"}
	fillFromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	if info.Version != "dev" || info.Commit != "unknown" {
		t.Errorf("info = %+v", info)
	}
}

func TestString_Dirty(t *testing.T) {
	i := Info{Version: "v1", Commit: "abc", Date: "d", Modified: true, GoVersion: "go1.24", Platform: "linux/amd64"}
	want := "stickermirror v1 (abc-dirty) built on d with go1.24 for linux/amd64"
	if got := i.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestShortAndUserAgent(t *testing.T) {
	old := Version
	Version = "1.2.3"
	defer func() { Version = old }()

	if got := Short(); got != "stickermirror 1.2.3" {
		t.Errorf("Short() = %q", got)
	}
	if got := UserAgent(); got != "stickermirror/1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
}
