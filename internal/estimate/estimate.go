// Package estimate prices a single job run per instance type by joining the
// extracted metrics against a reference workbook of EC2 hardware and pricing
// data.
package estimate

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pcmops/jobmetrics/internal/models"
	"github.com/pcmops/jobmetrics/internal/report"
)

// DefaultComputeType is the pricing column used unless overridden.
const DefaultComputeType = "Spot (avg)"

const (
	refSheetName = "ref_aws_ec2"

	// Scratch disk sizing and pricing assumptions: gp3 volumes in us-west-2,
	// never smaller than the cluster's standard worker disk.
	minimumEBSSizeGB       = 50.0
	ebsGP3MonthlyCostPerGB = 0.08
	stageOutScratchFactor  = 2.5
)

// Reference workbook column titles.
const (
	colAPIName            = "API Name"
	colPhysicalProcessor  = "Physical Processor"
	colVCPUs              = "vCPUs"
	colMemoryGiB          = "Instance Memory (GiB)"
	colMemoryPerVCPU      = "GiB of Memory per vCPU"
	colInstanceStorage    = "Instance Storage"
	colNetworkPerformance = "Network Performance"
)

// RefInstance holds the reference hardware and pricing data for one EC2
// instance type. Hardware fields stay verbatim strings; only the price is
// numeric.
type RefInstance struct {
	APIName            string
	PhysicalProcessor  string
	VCPUs              string
	MemoryGiB          string
	MemoryPerVCPU      string
	InstanceStorage    string
	NetworkPerformance string
	HourlyCost         *float64
}

// LoadRefInstances reads the ref_aws_ec2 sheet of the reference workbook,
// keyed by API name. The sheet starts with a blank spacer row, so the header
// sits on the second row.
func LoadRefInstances(path, computeType string) (map[string]RefInstance, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open reference workbook %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows(refSheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", refSheetName, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sheet %s has no header row", refSheetName)
	}

	columns := make(map[string]int)
	for i, title := range rows[1] {
		columns[strings.TrimSpace(title)] = i
	}
	if _, ok := columns[colAPIName]; !ok {
		return nil, fmt.Errorf("sheet %s has no %q column", refSheetName, colAPIName)
	}
	if _, ok := columns[computeType]; !ok {
		return nil, fmt.Errorf("sheet %s has no %q pricing column", refSheetName, computeType)
	}

	cell := func(row []string, title string) string {
		i, ok := columns[title]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	instances := make(map[string]RefInstance)
	for _, row := range rows[2:] {
		name := cell(row, colAPIName)
		if name == "" {
			continue
		}
		instances[name] = RefInstance{
			APIName:            name,
			PhysicalProcessor:  cell(row, colPhysicalProcessor),
			VCPUs:              cell(row, colVCPUs),
			MemoryGiB:          cell(row, colMemoryGiB),
			MemoryPerVCPU:      cell(row, colMemoryPerVCPU),
			InstanceStorage:    cell(row, colInstanceStorage),
			NetworkPerformance: cell(row, colNetworkPerformance),
			HourlyCost:         parsePrice(cell(row, computeType)),
		}
	}
	return instances, nil
}

func parsePrice(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", ""))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// Row is the product estimate for one metric row. Fields derived from
// missing metrics or an unmatched instance type stay nil and export as empty
// cells.
type Row struct {
	JobType          string
	JobRuntimeMin    *float64
	StageInSizeGB    *float64
	StageOutSizeGB   *float64
	InstanceType     string
	BillingType      string
	HourlyCost       *float64
	Hardware         RefInstance
	EBSScratchGB     *float64
	EBSMonthlyCostGB float64
	StageInMin       *float64
	StageOutMin      *float64
	StageInRateMBps  *float64
	StageOutRateMBps *float64
	RuntimeMovedHrs  *float64
	RuntimeHrs       *float64
	EC2CostPerJob    *float64
	EBSCostPerJob    *float64
	CostPerJob       *float64
}

// Build derives one estimate row per metric row. Instance types absent from
// the reference data keep their metrics but carry empty hardware and cost
// cells.
func Build(metricRows []models.JobMetricRow, ref map[string]RefInstance, computeType string, rounding int) []Row {
	round := func(v float64) *float64 {
		pow := math.Pow10(rounding)
		r := math.Round(v*pow) / pow
		return &r
	}

	rows := make([]Row, 0, len(metricRows))
	for _, m := range metricRows {
		row := Row{
			JobType:          m.JobType,
			JobRuntimeMin:    m.JobRuntimeMin,
			StageInSizeGB:    m.StageInSizeGB,
			StageOutSizeGB:   m.StageOutSizeGB,
			InstanceType:     m.InstanceType,
			BillingType:      computeType,
			StageInRateMBps:  m.StageInRateMBps,
			StageOutRateMBps: m.StageOutRateMBps,
			EBSMonthlyCostGB: ebsGP3MonthlyCostPerGB,
		}
		if hw, ok := ref[m.InstanceType]; ok {
			row.Hardware = hw
			row.HourlyCost = hw.HourlyCost
		}

		if m.StageInSizeGB != nil && m.StageOutSizeGB != nil {
			row.EBSScratchGB = round(math.Max(
				*m.StageInSizeGB+*m.StageOutSizeGB*stageOutScratchFactor,
				minimumEBSSizeGB))
		}
		if m.StageInSizeGB != nil && m.StageInRateMBps != nil && *m.StageInRateMBps > 0 {
			row.StageInMin = round(*m.StageInSizeGB * 1024 / *m.StageInRateMBps / 60)
		}
		if m.StageOutSizeGB != nil && m.StageOutRateMBps != nil && *m.StageOutRateMBps > 0 {
			row.StageOutMin = round(*m.StageOutSizeGB * 1024 / *m.StageOutRateMBps / 60)
		}
		if m.JobRuntimeMin != nil {
			row.RuntimeHrs = round(*m.JobRuntimeMin / 60)
			if row.StageInMin != nil && row.StageOutMin != nil {
				row.RuntimeMovedHrs = round((*m.JobRuntimeMin + *row.StageInMin + *row.StageOutMin) / 60)
			}
		}
		if row.HourlyCost != nil && row.RuntimeHrs != nil {
			row.EC2CostPerJob = round(*row.HourlyCost * *row.RuntimeHrs)
		}
		if row.EBSScratchGB != nil && row.RuntimeMovedHrs != nil {
			// Prorate the monthly gp3 rate over the job's wall time.
			row.EBSCostPerJob = round(*row.EBSScratchGB * ebsGP3MonthlyCostPerGB * (*row.RuntimeMovedHrs / 24 / 30))
		}
		if row.EC2CostPerJob != nil && row.EBSCostPerJob != nil {
			row.CostPerJob = round(*row.EC2CostPerJob + *row.EBSCostPerJob)
		}

		rows = append(rows, row)
	}
	return rows
}

// EstimatesTable lays out the estimate rows as the product_estimates sheet.
func EstimatesTable(rows []Row) report.Table {
	t := report.Table{
		Name: report.SheetEstimates,
		Header: []string{
			"JobType", "job_runtime_m", "stage_in_size_gb", "stage_out_size_gb",
			"InstanceType", "Compute Billing Type", "compute instance cost ($/hr)",
			"Physical Processor", "vCPUs", "Instance Memory (GiB)",
			"GiB of Memory per vCPU", "Instance Storage",
			"EBS scratch Disk General Purpose SSD gp3 Volumes (GB)",
			"EBS gp3 cost/GB/month in us-west-2", "Network Performance",
			"stage_in_rate_MBps", "stage_out_rate_MBps",
			"Data Stage-In time (minutes)", "Data Stage-Out time (minutes)",
			"Job Runtime with data movement (hours)",
			"Total Job Runtime to use for estimating per job cost (hours)",
			"EC2 Instance cost (for duration of job)",
			"EBS scratch disk cost (for duration of job)",
			"Cost of a single job run",
		},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.JobType,
			report.Cell(r.JobRuntimeMin),
			report.Cell(r.StageInSizeGB),
			report.Cell(r.StageOutSizeGB),
			r.InstanceType,
			r.BillingType,
			report.Cell(r.HourlyCost),
			r.Hardware.PhysicalProcessor,
			r.Hardware.VCPUs,
			r.Hardware.MemoryGiB,
			r.Hardware.MemoryPerVCPU,
			r.Hardware.InstanceStorage,
			report.Cell(r.EBSScratchGB),
			r.EBSMonthlyCostGB,
			r.Hardware.NetworkPerformance,
			report.Cell(r.StageInRateMBps),
			report.Cell(r.StageOutRateMBps),
			report.Cell(r.StageInMin),
			report.Cell(r.StageOutMin),
			report.Cell(r.RuntimeMovedHrs),
			report.Cell(r.RuntimeHrs),
			report.Cell(r.EC2CostPerJob),
			report.Cell(r.EBSCostPerJob),
			report.Cell(r.CostPerJob),
		})
	}
	return t
}
