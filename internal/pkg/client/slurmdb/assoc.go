package slurmdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"slurmtools/internal/pkg/model"
)

// assocRow mirrors the columns of <cluster>_assoc_table that carry the
// managed limit attributes. TRES strings in the database use numeric TRES
// ids ("1=1500"), QOS values use qos_table ids.
type assocRow struct {
	Acct           string `gorm:"column:acct"`
	User           string `gorm:"column:user"`
	Shares         int    `gorm:"column:shares"`
	GrpTRES        string `gorm:"column:grp_tres"`
	GrpTRESMins    string `gorm:"column:grp_tres_mins"`
	GrpTRESRunMins string `gorm:"column:grp_tres_run_mins"`
	MaxTRES        string `gorm:"column:max_tres_pj"`
	MaxTRESPerNode string `gorm:"column:max_tres_pn"`
	MaxTRESMins    string `gorm:"column:max_tres_mins_pj"`
	QOS            string `gorm:"column:qos"`
	DefQOSID       int    `gorm:"column:def_qos_id"`
}

type qosRow struct {
	ID   int    `gorm:"column:id"`
	Name string `gorm:"column:name"`
}

type tresRow struct {
	ID   int    `gorm:"column:id"`
	Type string `gorm:"column:type"`
	Name string `gorm:"column:name"`
}

// AssocTableName returns the cluster-specific association table name.
func AssocTableName(cluster string) string { return cluster + "_assoc_table" }

// Associations reads all live association rows for the configured cluster
// and maps them into the same shape the sacctmgr listing produces: TRES ids
// become TRES names, QOS ids become QOS names, empty columns mean "unset".
func (c *Client) Associations(ctx context.Context) ([]model.AssociationRecord, error) {
	if c == nil || c.DB == nil {
		return nil, fmt.Errorf("nil slurmdb Client")
	}
	if strings.TrimSpace(c.ClusterName) == "" {
		return nil, fmt.Errorf("cluster name is empty in slurmdb Client")
	}

	qosNames, err := c.qosNames(ctx)
	if err != nil {
		return nil, err
	}
	tresNames, err := c.tresNames(ctx)
	if err != nil {
		return nil, err
	}

	var rows []assocRow
	if err := c.DB.WithContext(ctx).
		Table(AssocTableName(c.ClusterName)).
		Where("deleted = 0").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]model.AssociationRecord, 0, len(rows))
	for _, row := range rows {
		attrs := make(model.AttrValues)
		if row.Shares > 0 {
			attrs[model.Fairshare] = strconv.Itoa(row.Shares)
		}
		setTRES := func(a model.Attribute, raw string) {
			if v := tresToNames(raw, tresNames); v != "" {
				attrs[a] = a.Normalize(v)
			}
		}
		setTRES(model.GrpTRES, row.GrpTRES)
		setTRES(model.GrpTRESMins, row.GrpTRESMins)
		setTRES(model.GrpTRESRunMins, row.GrpTRESRunMins)
		setTRES(model.MaxTRES, row.MaxTRES)
		setTRES(model.MaxTRESPerNode, row.MaxTRESPerNode)
		setTRES(model.MaxTRESMins, row.MaxTRESMins)
		if v := qosToNames(row.QOS, qosNames); v != "" {
			attrs[model.QOS] = model.QOS.Normalize(v)
		}
		if name, ok := qosNames[row.DefQOSID]; ok && row.DefQOSID > 0 {
			attrs[model.DefQOS] = model.DefQOS.Normalize(name)
		}
		records = append(records, model.AssociationRecord{
			Account: row.Acct,
			User:    row.User,
			Attrs:   attrs,
		})
	}
	return records, nil
}

func (c *Client) qosNames(ctx context.Context) (map[int]string, error) {
	var rows []qosRow
	if err := c.DB.WithContext(ctx).
		Table("qos_table").
		Where("deleted = 0").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int]string, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Name
	}
	return out, nil
}

func (c *Client) tresNames(ctx context.Context) (map[int]string, error) {
	var rows []tresRow
	if err := c.DB.WithContext(ctx).
		Table("tres_table").
		Where("deleted = 0").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int]string, len(rows))
	for _, r := range rows {
		// gres/licenses carry a sub-name, plain tres (cpu, mem, node) do not
		name := r.Type
		if r.Name != "" {
			name = r.Type + "/" + r.Name
		}
		out[r.ID] = name
	}
	return out, nil
}

// tresToNames rewrites "1=1500,4=2" into "cpu=1500,node=2". Ids without a
// known name are kept numeric rather than dropped.
func tresToNames(raw string, names map[int]string) string {
	raw = strings.Trim(raw, ",")
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		id, value, found := strings.Cut(p, "=")
		if !found {
			continue
		}
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		if name, ok := names[n]; ok {
			out = append(out, name+"="+value)
		} else {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// qosToNames rewrites the ",1,2," qos id list into "normal,high".
func qosToNames(raw string, names map[int]string) string {
	raw = strings.Trim(raw, ",")
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		if name, ok := names[n]; ok {
			out = append(out, name)
		}
	}
	return strings.Join(out, ",")
}
