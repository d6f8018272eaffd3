// Command eq500x_logger subscribes to the daemon's status websocket and
// records every update in InfluxDB.
package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	log "github.com/sirupsen/logrus"
)

var (
	influxServer = kingpin.Flag("influx", "InfluxDB server URL").Default("http://localhost:9999").Envar("INFLUX_SERVER").String()
	influxToken  = kingpin.Flag("token", "InfluxDB auth token").Envar("INFLUX_TOKEN").String()
	influxOrg    = kingpin.Flag("org", "InfluxDB organization").Default("observatory").Envar("INFLUX_ORG").String()
	influxBucket = kingpin.Flag("bucket", "InfluxDB bucket").Default("eq500x.raw").Envar("INFLUX_BUCKET").String()
	statusURL    = kingpin.Flag("status", "daemon status websocket URL").Default("ws://localhost:8080/api/ws").Envar("EQ500X_ADDRESS").String()
)

func main() {
	kingpin.Parse()

	client := influxdb2.NewClient(*influxServer, *influxToken)
	defer client.Close()
	// Non-blocking write client
	writeApi := client.WriteApi(*influxOrg, *influxBucket)
	defer writeApi.Close()
	errorsCh := writeApi.Errors()
	go func() {
		for err := range errorsCh {
			log.Errorf("write error: %v", err)
		}
	}()
	for {
		if err := logData(writeApi); err != nil {
			log.Errorln(err)
		}
		time.Sleep(1 * time.Second)
	}
}

// flattenStatus turns nested JSON into dotted field names.
func flattenStatus(fields map[string]interface{}, status interface{}, prefix string) {
	switch status := status.(type) {
	case map[string]interface{}:
		for k, v := range status {
			flattenStatus(fields, v, prefix+"."+k)
		}
	case []interface{}:
		for k, v := range status {
			flattenStatus(fields, v, fmt.Sprintf("%s.%d", prefix, k))
		}
	default:
		fields[prefix[1:]] = status
	}
}

func logData(writeApi api.WriteApi) error {
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(*statusURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Infof("connected to %s", *statusURL)
	for {
		var status interface{}
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		fields := make(map[string]interface{})
		flattenStatus(fields, status, "")

		p := influxdb2.NewPoint("eq500x.status",
			nil,
			fields,
			time.Now(),
		)
		// write asynchronously
		writeApi.WritePoint(p)
	}
}
