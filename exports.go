package main

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportRange reads ?start= and ?end= (YYYY-MM-DD). Missing bounds default
// to the current month at the site.
func exportRange(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	start, end := utils.GetThisMonthRange(now)
	if raw := c.Query("start"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = d
	}
	if raw := c.Query("end"); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = d
	}
	return start, end, nil
}

// exportRecords downloads the records of a date range as CSV or XLSX.
func (h *handler) exportRecords(c *gin.Context) {
	kind, ok := tableKind(c)
	if !ok {
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or xlsx"})
		return
	}
	table, site, ok := h.loadTable(c, kind)
	if !ok {
		return
	}
	start, end, err := exportRange(c, table.Window().Reference(h.clock()))
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == "xlsx" {
		contentType = xlsxContentType
		err = models.ExportExcel(&buf, table.Records(), table.Schema, start, end)
	} else {
		err = models.WriteCSV(&buf, table.Records(), table.Schema, start, end)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("%s_%s_%s_%s.%s", site.ID, kind, models.FormatDate(start), models.FormatDate(end), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
