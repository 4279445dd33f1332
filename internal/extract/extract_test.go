package extract

import (
	"net/url"
	"strings"
	"testing"
)

const listing = `<html><body>
<a href="?C=N;O=D">Name</a>
<a href="/sort_by_project/THEMIS/asi/stream0/2020/01/">Parent Directory</a>
<a href="atha_themis02/">atha_themis02/</a>
<a href="gako_themis20/">gako_themis20/</a>
<a href="gako_themis20/">gako_themis20/</a>
<a href="https://other.example.com/x/">elsewhere</a>
<a href="readme.txt">readme.txt</a>
<a href="nested/deeper/">deeper</a>
</body></html>`

func TestChildren(t *testing.T) {
	dir, _ := url.Parse("https://data.example.org/sort_by_project/THEMIS/asi/stream0/2020/01/01/")
	links, err := ParseLinks(dir, strings.NewReader(listing))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := Children(dir, links)
	want := []Entry{
		{Name: "atha_themis02", Dir: true},
		{Name: "gako_themis20", Dir: true},
		{Name: "readme.txt", Dir: false},
	}
	if len(got) != len(want) {
		t.Fatalf("Children() = %+v, want %d entries", got, len(want))
	}
	for i := range want {
		if got[i].Name != want[i].Name || got[i].Dir != want[i].Dir {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if got[1].URL.String() != dir.String()+"gako_themis20/" {
		t.Errorf("resolved URL = %s", got[1].URL)
	}
}

func TestParseLinks_Empty(t *testing.T) {
	base, _ := url.Parse("http://example.com/")
	links, err := ParseLinks(base, strings.NewReader(""))
	if err != nil || len(links) != 0 {
		t.Errorf("ParseLinks(empty) = %v, %v", links, err)
	}
}
