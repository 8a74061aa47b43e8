package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Feed is one RSS source. Name is what records are tagged with.
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Sources lists what to collect from.
//
//	feeds:
//	  - name: 보안뉴스
//	    url: http://www.boannews.com/media/news_rss.xml
//	naver_keywords:
//	  - 랜섬웨어
type Sources struct {
	Feeds         []Feed   `yaml:"feeds"`
	NaverKeywords []string `yaml:"naver_keywords"`
}

// DefaultSources is used when no sources file exists.
func DefaultSources() *Sources {
	return &Sources{
		Feeds: []Feed{
			{Name: "데일리시큐", URL: "https://www.dailysecu.com/rss/allArticle.xml"},
			{Name: "보안뉴스", URL: "http://www.boannews.com/media/news_rss.xml"},
		},
		NaverKeywords: []string{
			"침해사고", "개인정보 유출", "해킹", "랜섬웨어", "DDoS", "계정 탈취", "피싱", "취약점 악용",
		},
	}
}

// LoadSources reads the YAML sources file at path. A missing file yields
// DefaultSources; an empty section in an existing file stays empty.
func LoadSources(path string) (*Sources, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSources(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Sources
	if err := yaml.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, feed := range s.Feeds {
		if strings.TrimSpace(feed.Name) == "" || strings.TrimSpace(feed.URL) == "" {
			return nil, fmt.Errorf("%s: feed %d needs both name and url", path, i+1)
		}
	}
	return &s, nil
}
