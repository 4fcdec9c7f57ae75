package processor

import (
	"fmt"
	"strings"

	"CustomerAnalytics/src/config"
	"CustomerAnalytics/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TargetList 一个营销活动的目标客户
type TargetList struct {
	Campaign   string
	OutputFile string
	IDs        []string
}

// DataFrame 单列 master_id
func (t TargetList) DataFrame() dataframe.DataFrame {
	return dataframe.New(series.New(t.IDs, series.String, ColMasterID))
}

// MatchesCategory 兴趣类别字段包含任一关键字(土耳其语大写后比较)
func MatchesCategory(field string, keywords []string) bool {
	upper := cases.Upper(language.Turkish)
	value := upper.String(field)
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(value, upper.String(kw)) {
			return true
		}
	}
	return false
}

// SelectTargets 按输入顺序选出细分与兴趣类别都符合的客户, 同一客户只出现一次
// scored 为打分后的RFM表, 提供每个客户的细分
func SelectTargets(prepared, scored dataframe.DataFrame, campaign config.Campaign) (TargetList, error) {
	list := TargetList{Campaign: campaign.Name, OutputFile: campaign.OutputFile, IDs: []string{}}
	if err := utils.RequireColumns(prepared, ColMasterID, ColInterestedCategories); err != nil {
		return list, err
	}

	wanted, err := FilterSegments(scored, campaign.Segments)
	if err != nil {
		return list, err
	}
	inSegment := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		inSegment[id] = true
	}

	ids := prepared.Col(ColMasterID).Records()
	categories := prepared.Col(ColInterestedCategories).Records()
	seen := make(map[string]bool)
	for i, id := range ids {
		if seen[id] || !inSegment[id] {
			continue
		}
		if MatchesCategory(categories[i], campaign.Categories) {
			seen[id] = true
			list.IDs = append(list.IDs, id)
		}
	}
	return list, nil
}

// SelectAllTargets 依次处理所有活动
func SelectAllTargets(prepared, scored dataframe.DataFrame, campaigns []config.Campaign) ([]TargetList, error) {
	lists := make([]TargetList, 0, len(campaigns))
	for _, c := range campaigns {
		list, err := SelectTargets(prepared, scored, c)
		if err != nil {
			return nil, fmt.Errorf("活动 %s: %w", c.Name, err)
		}
		lists = append(lists, list)
	}
	return lists, nil
}
