package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SeedSource 启动时确保存在的新闻来源
type SeedSource struct {
	Name        string  `yaml:"name"`
	RSSURL      string  `yaml:"rssUrl"`
	BaseURL     string  `yaml:"baseUrl"`
	SourceScore float64 `yaml:"sourceScore"`
}

// SeedFile SOURCES_FILE 指向的 YAML 文件结构
type SeedFile struct {
	Sources []SeedSource `yaml:"sources"`
	// Disabled 已知抓取异常、需要停用的来源名称
	Disabled []string `yaml:"disabled"`
}

// LoadSeedFile 读取 YAML 种子文件；path 为空时返回内置默认列表
func LoadSeedFile(path string) (*SeedFile, error) {
	if path == "" {
		return DefaultSeedFile(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read sources file %s", path)
	}
	var f SeedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrapf(err, "parse sources file %s", path)
	}
	for i := range f.Sources {
		if f.Sources[i].SourceScore == 0 {
			f.Sources[i].SourceScore = 0.5
		}
	}
	return &f, nil
}

// DefaultSeedFile 内置的摔角新闻来源
func DefaultSeedFile() *SeedFile {
	return &SeedFile{
		Sources: []SeedSource{
			// 综合新闻站
			{Name: "PWInsider", RSSURL: "http://www.pwinsider.com/rss.php", BaseURL: "https://www.pwinsider.com", SourceScore: 0.5},
			{Name: "Wrestling Observer", RSSURL: "https://www.f4wonline.com/rss.xml", BaseURL: "https://www.f4wonline.com", SourceScore: 0.5},
			{Name: "Pro Wrestling Torch", RSSURL: "https://www.pwtorch.com/feed", BaseURL: "https://www.pwtorch.com", SourceScore: 0.5},
			{Name: "Fightful", RSSURL: "https://www.fightful.com/rss.xml", BaseURL: "https://www.fightful.com", SourceScore: 0.5},
			{Name: "SEScoops", RSSURL: "https://www.sescoops.com/feed", BaseURL: "https://www.sescoops.com", SourceScore: 0.5},
			{Name: "WrestleZone", RSSURL: "https://www.wrestlezone.com/feed", BaseURL: "https://www.wrestlezone.com", SourceScore: 0.5},
			{Name: "411Mania Wrestling", RSSURL: "https://411mania.com/wrestling/feed/", BaseURL: "https://411mania.com/wrestling/", SourceScore: 0.5},
			{Name: "Ringside News", RSSURL: "https://www.ringsidenews.com/feed/", BaseURL: "https://www.ringsidenews.com", SourceScore: 0.5},
			{Name: "Cageside Seats", RSSURL: "https://www.cagesideseats.com/rss/index.xml", BaseURL: "https://www.cagesideseats.com", SourceScore: 0.5},

			// 官方团体
			{Name: "WWE", BaseURL: "https://www.wwe.com/news", SourceScore: 0.5},
			{Name: "AEW", BaseURL: "https://www.allelitewrestling.com/aew-news", SourceScore: 0.5},
			{Name: "TNA Wrestling", RSSURL: "https://tnawrestling.com/news/feed/", BaseURL: "https://tnawrestling.com/news/", SourceScore: 0.5},
			{Name: "NJPW", RSSURL: "https://www.njpw1972.com/feed", BaseURL: "https://www.njpw1972.com", SourceScore: 0.5},
			{Name: "Ring of Honor", RSSURL: "https://www.rohwrestling.com/news/feed", BaseURL: "https://www.rohwrestling.com/news", SourceScore: 0.5},

			// 主流体育媒体
			{Name: "ESPN WWE", RSSURL: "https://www.espn.com/espn/rss/wwe/news", BaseURL: "https://www.espn.com/wwe/", SourceScore: 0.5},
			{Name: "CBS Sports WWE", RSSURL: "https://www.cbssports.com/rss/headlines/wwe/", BaseURL: "https://www.cbssports.com/wwe/", SourceScore: 0.5},
		},
		Disabled: []string{"WWE", "AEW", "Fightful"},
	}
}
