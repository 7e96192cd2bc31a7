package urlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobKey(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{
			name: "linkedin tracking params dropped",
			link: "https://il.linkedin.com/jobs/view/data-scientist-at-acme-3790000001?refId=abc%3D%3D&trackingId=xyz&position=3&pageNum=0&trk=public_jobs_jserp-result_search-card",
			want: "https://linkedin.com/jobs/view/data-scientist-at-acme-3790000001",
		},
		{
			name: "www and trailing slash",
			link: "https://www.LinkedIn.com/jobs/view/123/",
			want: "https://linkedin.com/jobs/view/123",
		},
		{
			name: "fragment dropped",
			link: "https://example.com/careers/42#apply",
			want: "https://example.com/careers/42",
		},
		{
			name: "identity params kept and sorted",
			link: "https://example.com/viewjob?utm_source=feed&jk=abc&from=serp",
			want: "https://example.com/viewjob?from=serp&jk=abc",
		},
		{
			name: "scheme-less link",
			link: "example.com/jobs/7",
			want: "https://example.com/jobs/7",
		},
		{
			name: "protocol-relative link",
			link: "//boards.example.org/jobs/7",
			want: "https://boards.example.org/jobs/7",
		},
		{
			name: "http upgraded to https",
			link: "HTTP://il.linkedin.com/jobs/view/5?trk=x",
			want: "https://linkedin.com/jobs/view/5",
		},
		{
			name: "longer subdomains are not collapsed",
			link: "https://careers.linkedin.com/jobs/1",
			want: "https://careers.linkedin.com/jobs/1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JobKey(tt.link)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobKeyEquivalentLinksCollide(t *testing.T) {
	a, err := JobKey("https://il.linkedin.com/jobs/view/ml-engineer-4001?refId=1&trackingId=2")
	require.NoError(t, err)
	b, err := JobKey("https://www.linkedin.com/jobs/view/ml-engineer-4001/?position=7")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := JobKey("http://linkedin.com/jobs/view/ml-engineer-4001")
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestJobKeyRejectsUnusableLinks(t *testing.T) {
	for _, link := range []string{"", "   ", "/jobs/view/1"} {
		_, err := JobKey(link)
		assert.Error(t, err, "link %q", link)
	}
}

func TestResolve(t *testing.T) {
	base, err := url.Parse("https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search")
	require.NoError(t, err)

	assert.Equal(t, "https://www.linkedin.com/jobs/view/1", Resolve(base, "/jobs/view/1"))
	assert.Equal(t, "https://example.com/a", Resolve(base, "https://example.com/a"))
	assert.Equal(t, "", Resolve(base, "mailto:jobs@example.com"))
	assert.Equal(t, "", Resolve(base, "javascript:void(0)"))
	assert.Equal(t, "", Resolve(base, ""))
	assert.Equal(t, "", Resolve(nil, "/relative"))
}
